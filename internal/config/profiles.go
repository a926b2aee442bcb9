package config

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

const DefaultProfile = "balanced"

//go:embed profiles.yaml
var defaultProfiles []byte

// Profile is a named preset of resource-sensitive settings.
type Profile struct {
	ChatMaxTokens      int `yaml:"chat_max_tokens"`
	ChatHistoryWindow  int `yaml:"chat_history_window"`
	SummaryChunkSize   int `yaml:"summary_chunk_size"`
	SummaryMaxChunks   int `yaml:"summary_max_chunks"`
	SummaryWorkers     int `yaml:"summary_workers"`
	RetrievedDocsCount int `yaml:"retrieved_docs_count"`
}

type profileFile struct {
	Profiles map[string]Profile `yaml:"profiles"`
}

// LoadProfiles decodes the profile set from path, or the built-in set when
// path is empty.
func LoadProfiles(path string) (map[string]Profile, error) {
	raw := defaultProfiles
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read profile file: %w", err)
		}
		raw = b
	}
	return parseProfiles(raw)
}

func parseProfiles(raw []byte) (map[string]Profile, error) {
	var pf profileFile
	if err := yaml.Unmarshal(raw, &pf); err != nil {
		return nil, fmt.Errorf("decode profiles: %w", err)
	}
	if len(pf.Profiles) == 0 {
		return nil, fmt.Errorf("no profiles defined")
	}
	for name, p := range pf.Profiles {
		if p.ChatHistoryWindow == 0 {
			p.ChatHistoryWindow = 2
		}
		if p.RetrievedDocsCount == 0 {
			p.RetrievedDocsCount = 3
		}
		if p.SummaryWorkers == 0 {
			p.SummaryWorkers = 2
		}
		pf.Profiles[name] = p
	}
	return pf.Profiles, nil
}
