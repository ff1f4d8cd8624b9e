package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/diagnoclinic/apiserver/types"
)

const (
	UnknownDisease = "Maladie inconnue"
	DefaultService = "Service de Médecine Générale"
)

// DefaultExams is recommended when the disease has no exam list.
var DefaultExams = []string{"Consultation médicale approfondie"}

// Routing of the diseases known to the legacy string-only mapping files.
var (
	builtinServices = map[string]string{
		"Pneumonie": "Service de Pneumologie",
		"Bronchite": "Service de Pneumologie",
		"Grippe":    "Service de Médecine Générale",
		"Covid-19":  "Service des Maladies Infectieuses",
	}
	builtinExams = map[string][]string{
		"Pneumonie": {"Radiographie thoracique", "Test sanguin", "Test PCR"},
		"Bronchite": {"Auscultation", "Test sanguin", "Spirométrie"},
		"Grippe":    {"Test grippal", "Examen physique"},
		"Covid-19":  {"Test PCR", "Scanner thoracique"},
	}
	builtinClasses = []string{"Pneumonie", "Bronchite", "Grippe", "Covid-19"}
)

// DiseaseMapping maps classifier output indices to diseases. It is
// read-only once loaded.
type DiseaseMapping struct {
	entries map[string]types.DiseaseEntry
}

type mappingObject struct {
	Name    string   `json:"name"`
	Maladie string   `json:"maladie"`
	Service string   `json:"service"`
	Examens []string `json:"examens"`
	Exams   []string `json:"exams"`
}

// DefaultDiseaseMapping returns the built-in four-class mapping.
func DefaultDiseaseMapping() *DiseaseMapping {
	entries := make(map[string]types.DiseaseEntry, len(builtinClasses))
	for i, name := range builtinClasses {
		class := strconv.Itoa(i)
		entries[class] = legacyEntry(class, name)
	}
	return &DiseaseMapping{entries: entries}
}

// LoadDiseaseMapping reads the mapping file. Entries are either objects
// {"name", "service", "examens"} or bare disease names, whose routing then
// comes from the built-in tables. A missing file yields the built-in mapping.
func LoadDiseaseMapping(path string) (*DiseaseMapping, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return DefaultDiseaseMapping(), nil
		}
		return nil, err
	}
	return ParseDiseaseMapping(data)
}

func ParseDiseaseMapping(data []byte) (*DiseaseMapping, error) {
	raw := map[string]json.RawMessage{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode disease mapping: %w", err)
	}

	entries := make(map[string]types.DiseaseEntry, len(raw))
	for class, value := range raw {
		class = strings.TrimSpace(class)

		var name string
		if err := json.Unmarshal(value, &name); err == nil {
			entries[class] = legacyEntry(class, name)
			continue
		}

		var obj mappingObject
		if err := json.Unmarshal(value, &obj); err != nil {
			return nil, fmt.Errorf("disease mapping class %q: %w", class, err)
		}
		entry := types.DiseaseEntry{
			Class:   class,
			Name:    firstNonEmpty(obj.Name, obj.Maladie),
			Service: obj.Service,
			Exams:   obj.Examens,
		}
		if entry.Exams == nil {
			entry.Exams = obj.Exams
		}
		if entry.Name == "" {
			return nil, fmt.Errorf("disease mapping class %q has no name", class)
		}
		fallback := legacyEntry(class, entry.Name)
		if entry.Service == "" {
			entry.Service = fallback.Service
		}
		if len(entry.Exams) == 0 {
			entry.Exams = fallback.Exams
		}
		entries[class] = entry
	}
	return &DiseaseMapping{entries: entries}, nil
}

// Lookup returns the entry for class.
func (m *DiseaseMapping) Lookup(class string) (types.DiseaseEntry, bool) {
	entry, ok := m.entries[strings.TrimSpace(class)]
	if !ok {
		return types.DiseaseEntry{}, false
	}
	entry.Exams = append([]string(nil), entry.Exams...)
	return entry, true
}

// Resolve returns the entry for class, or the unknown-disease sentinel.
func (m *DiseaseMapping) Resolve(class string) (types.DiseaseEntry, bool) {
	if entry, ok := m.Lookup(class); ok {
		return entry, true
	}
	return types.DiseaseEntry{
		Class:   class,
		Name:    UnknownDisease,
		Service: DefaultService,
		Exams:   append([]string(nil), DefaultExams...),
	}, false
}

// Entries returns every entry ordered by class, numerically when possible.
func (m *DiseaseMapping) Entries() []types.DiseaseEntry {
	out := make([]types.DiseaseEntry, 0, len(m.entries))
	for _, entry := range m.entries {
		entry.Exams = append([]string(nil), entry.Exams...)
		out = append(out, entry)
	}
	sort.Slice(out, func(i, j int) bool {
		a, errA := strconv.Atoi(out[i].Class)
		b, errB := strconv.Atoi(out[j].Class)
		if errA == nil && errB == nil {
			return a < b
		}
		return out[i].Class < out[j].Class
	})
	return out
}

func legacyEntry(class, name string) types.DiseaseEntry {
	service, ok := builtinServices[name]
	if !ok {
		service = DefaultService
	}
	exams, ok := builtinExams[name]
	if !ok {
		exams = DefaultExams
	}
	return types.DiseaseEntry{
		Class:   class,
		Name:    name,
		Service: service,
		Exams:   append([]string(nil), exams...),
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
