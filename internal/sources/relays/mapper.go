package relays

import (
	"errors"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/MrSnakeDoc/restreamer/internal/config"
	"github.com/MrSnakeDoc/restreamer/internal/domain"
)

// KeyPlaceholder is substituted with the per-relay key in target templates.
const KeyPlaceholder = "{key}"

var ErrNoRelays = errors.New("no usable relays configured")

// Dropped describes an entry rejected while mapping the file.
type Dropped struct {
	Position int // 1-based position in file order, 0 for the top-level shorthand
	Source   string
	Reason   string
}

// Result is the outcome of mapping a relays file.
type Result struct {
	Settings   config.FileSettings
	Candidates []domain.Relay // no ids assigned yet
	Dropped    []Dropped
}

// Mapper converts a parsed relays file to candidate relays
type Mapper struct{}

// NewMapper creates a new mapper instance
func NewMapper() *Mapper {
	return &Mapper{}
}

// Map validates every entry and resolves its target. Invalid entries are
// reported in Result.Dropped and never fail the whole file.
func (m *Mapper) Map(fc FileConfig) (Result, error) {
	res := Result{Settings: fc.Settings()}

	if fc.Source != "" || fc.Key != "" {
		m.add(&res, fc.Target, 0, StreamerProps{Source: fc.Source, Key: fc.Key})
	}

	for i := range fc.Streamers {
		node := &fc.Streamers[i]
		var props StreamerProps
		if node.Kind != yaml.MappingNode {
			res.Dropped = append(res.Dropped, Dropped{Position: i + 1, Reason: "streamer entry is not a mapping"})
			continue
		}
		if err := node.Decode(&props); err != nil {
			res.Dropped = append(res.Dropped, Dropped{Position: i + 1, Reason: "malformed streamer entry: " + err.Error()})
			continue
		}
		m.add(&res, fc.Target, i+1, props)
	}

	if len(res.Candidates) == 0 {
		return res, ErrNoRelays
	}
	return res, nil
}

func (m *Mapper) add(res *Result, template string, pos int, props StreamerProps) {
	source := strings.TrimSpace(props.Source)
	key := strings.TrimSpace(props.Key)
	target := strings.TrimSpace(props.Target)

	drop := func(reason string) {
		res.Dropped = append(res.Dropped, Dropped{Position: pos, Source: source, Reason: reason})
	}

	if source == "" {
		drop("missing source")
		return
	}
	if target == "" {
		if template == "" {
			drop("missing target and no default target template")
			return
		}
		target = template
	}
	if strings.Contains(target, KeyPlaceholder) {
		if key == "" {
			drop("missing key for templated target")
			return
		}
		target = strings.ReplaceAll(target, KeyPlaceholder, key)
	}

	enabled := true
	if props.Enabled != nil {
		enabled = *props.Enabled
	}

	res.Candidates = append(res.Candidates, domain.Relay{
		Source:      source,
		Target:      target,
		Key:         key,
		Description: strings.TrimSpace(props.Description),
		Enabled:     enabled,
	})
}
