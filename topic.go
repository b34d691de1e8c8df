/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

//go:embed topics/*.json
var builtinTopics embed.FS

const defaultTopicKey = "countries"

// foldMarks decomposes to NFKD and drops combining marks, so that
// "Côte d'Ivoire" and "cote d ivoire" normalize identically.
var foldMarks = transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)))

// normalizeName reduces free-form input to a comparison key: lowercase,
// accents stripped, runs of non-alphanumerics collapsed to single spaces.
func normalizeName(s string) string {
	folded, _, err := transform.String(foldMarks, s)
	if err != nil {
		folded = s
	}

	var b strings.Builder
	b.Grow(len(folded))
	pendingSpace := false
	for _, r := range strings.ToLower(folded) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if pendingSpace && b.Len() > 0 {
				b.WriteByte(' ')
			}
			pendingSpace = false
			b.WriteRune(r)
		} else {
			pendingSpace = true
		}
	}

	return b.String()
}

// Topic maps free-form player input to the canonical form of an item.
type Topic struct {
	Key   string
	Label string

	canon map[string]string
	list  []string
}

// ToCanonical resolves raw input to the official item name, or "" if the
// input names nothing in this topic.
func (t *Topic) ToCanonical(input string) string {
	return t.canon[normalizeName(input)]
}

// CanonicalList returns every canonical item, in definition order.
func (t *Topic) CanonicalList() []string {
	return t.list
}

// Total is the number of distinct items; reaching it completes a solo game.
func (t *Topic) Total() int {
	return len(t.list)
}

func newTopic(key, label string) *Topic {
	return &Topic{
		Key:   key,
		Label: label,
		canon: make(map[string]string),
	}
}

func (t *Topic) addItem(name string) {
	n := normalizeName(name)
	if n == "" {
		return
	}
	if _, dup := t.canon[n]; dup {
		return
	}
	t.canon[n] = name
	t.list = append(t.list, name)
}

func (t *Topic) addAlias(alias, canonical string) {
	n := normalizeName(alias)
	if n == "" {
		return
	}
	t.canon[n] = canonical
}

// newListTopic builds a topic from a flat list of names plus optional aliases.
func newListTopic(key, label string, names []string, aliases map[string]string) *Topic {
	t := newTopic(key, label)
	for _, name := range names {
		t.addItem(name)
	}
	for alias, canonical := range aliases {
		t.addAlias(alias, canonical)
	}
	return t
}

type topicItem struct {
	Name    string   `json:"name"`
	Code    string   `json:"code,omitempty"`
	Aliases []string `json:"aliases,omitempty"`
}

type topicFile struct {
	Key     string            `json:"key"`
	Label   string            `json:"label"`
	Kind    string            `json:"kind"`
	Names   []string          `json:"names,omitempty"`
	Aliases map[string]string `json:"aliases,omitempty"`
	Items   []topicItem       `json:"items,omitempty"`
}

func parseTopic(data []byte) (*Topic, error) {
	var tf topicFile
	if err := json.Unmarshal(data, &tf); err != nil {
		return nil, err
	}
	if tf.Key == "" || tf.Label == "" {
		return nil, fmt.Errorf("topic is missing key or label")
	}

	switch tf.Kind {
	case "", "list":
		return newListTopic(tf.Key, tf.Label, tf.Names, tf.Aliases), nil
	case "items":
		t := newTopic(tf.Key, tf.Label)
		for _, item := range tf.Items {
			if item.Name == "" {
				continue
			}
			t.addItem(item.Name)
			if item.Code != "" {
				t.addAlias(item.Code, item.Name)
			}
			for _, alias := range item.Aliases {
				t.addAlias(alias, item.Name)
			}
		}
		return t, nil
	default:
		return nil, fmt.Errorf("unknown topic kind %q", tf.Kind)
	}
}

// TopicSet holds every loaded topic, keyed by topic key.
type TopicSet struct {
	topics map[string]*Topic
}

// Resolve returns the topic for key, falling back to the default topic when
// the key is unknown.
func (ts *TopicSet) Resolve(key string) *Topic {
	if t, ok := ts.topics[key]; ok {
		return t
	}
	return ts.topics[defaultTopicKey]
}

// Has reports whether key names a loaded topic.
func (ts *TopicSet) Has(key string) bool {
	_, ok := ts.topics[key]
	return ok
}

func (ts *TopicSet) add(t *Topic) {
	ts.topics[t.Key] = t
}

// loadTopics reads the embedded topic files, then overlays any *.json files
// found in the configured topics directory.
func loadTopics(cfg *Config) (*TopicSet, error) {
	ts := &TopicSet{topics: make(map[string]*Topic)}

	entries, err := builtinTopics.ReadDir("topics")
	if err != nil {
		return nil, err
	}
	for _, entry := range entries {
		data, err := builtinTopics.ReadFile("topics/" + entry.Name())
		if err != nil {
			return nil, err
		}
		t, err := parseTopic(data)
		if err != nil {
			return nil, fmt.Errorf("embedded topic %s: %w", entry.Name(), err)
		}
		ts.add(t)
	}

	if cfg.topics != "" {
		files, err := filepath.Glob(filepath.Join(cfg.topics, "*.json"))
		if err != nil {
			return nil, err
		}
		for _, file := range files {
			data, err := os.ReadFile(file)
			if err != nil {
				return nil, err
			}
			t, err := parseTopic(data)
			if err != nil {
				return nil, fmt.Errorf("topic %s: %w", file, err)
			}
			ts.add(t)
			logf(cfg, "TOPIC: Loaded %q (%d items) from %s", t.Label, t.Total(), file)
		}
	}

	if !ts.Has(defaultTopicKey) {
		return nil, fmt.Errorf("default topic %q not loaded", defaultTopicKey)
	}

	return ts, nil
}
