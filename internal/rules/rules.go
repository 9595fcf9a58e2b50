// Package rules implements the pre-LLM triage rules engine: a data-driven,
// ordered rule set evaluated first-match-wins against inbound messages.
// Rules short-circuit spam and obvious ignores before any LLM cost is spent.
package rules

import (
	"fmt"
	"log"
	"os"
	"regexp"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"aiassist/internal/channels"
	"aiassist/internal/models"
)

// Action is a rule verdict
type Action string

const (
	ActionAutoReply Action = "auto_reply"
	ActionTriage    Action = "triage"
	ActionIgnore    Action = "ignore"
)

// Verdict is the result of evaluating the rule set against a message
type Verdict struct {
	Action Action
	Reply  string // populated for auto_reply
	Rule   string // name of the matching rule, empty for the default
}

// RuleSpec is the YAML shape of a single rule. A rule matches when every
// specified matcher matches; unset matchers are ignored.
type RuleSpec struct {
	Name         string   `yaml:"name"`
	Senders      []string `yaml:"senders,omitempty"` // allowlist semantics (see channels.SenderAllowed)
	SubjectRegex string   `yaml:"subject_regex,omitempty"`
	BodyContains string   `yaml:"body_contains,omitempty"`
	MaxAgeHours  int      `yaml:"max_age_hours,omitempty"` // message older than this matches
	Action       Action   `yaml:"action"`
	Reply        string   `yaml:"reply,omitempty"`
}

// rulesFile is the YAML document root
type rulesFile struct {
	Rules []RuleSpec `yaml:"rules"`
}

type compiledRule struct {
	spec       RuleSpec
	subjectRe  *regexp.Regexp
	bodyNeedle string
}

// Engine evaluates the ordered rule set. The set is swapped atomically on
// reload, so evaluation never observes a partially loaded file.
type Engine struct {
	mu    sync.RWMutex
	rules []compiledRule
	path  string
}

// NewEngine creates an engine with no rules (everything goes to triage)
func NewEngine() *Engine {
	return &Engine{}
}

// LoadFile parses and compiles the YAML rule file, replacing the active set
func (e *Engine) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read rules file: %w", err)
	}
	if err := e.Load(data); err != nil {
		return err
	}
	e.mu.Lock()
	e.path = path
	e.mu.Unlock()
	return nil
}

// Load parses and compiles a YAML rule document
func (e *Engine) Load(data []byte) error {
	var file rulesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("failed to parse rules YAML: %w", err)
	}

	compiled := make([]compiledRule, 0, len(file.Rules))
	for i, spec := range file.Rules {
		if spec.Name == "" {
			spec.Name = fmt.Sprintf("rule-%d", i)
		}
		switch spec.Action {
		case ActionAutoReply, ActionTriage, ActionIgnore:
		default:
			return fmt.Errorf("rule %q: unknown action %q", spec.Name, spec.Action)
		}

		cr := compiledRule{spec: spec, bodyNeedle: strings.ToLower(spec.BodyContains)}
		if spec.SubjectRegex != "" {
			re, err := regexp.Compile(spec.SubjectRegex)
			if err != nil {
				return fmt.Errorf("rule %q: bad subject regex: %w", spec.Name, err)
			}
			cr.subjectRe = re
		}
		compiled = append(compiled, cr)
	}

	e.mu.Lock()
	e.rules = compiled
	e.mu.Unlock()

	log.Printf("✅ Rules engine loaded %d rules", len(compiled))
	return nil
}

// Count returns the number of active rules
func (e *Engine) Count() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.rules)
}

// Evaluate runs the ordered rule set against a message. First match wins;
// with no match the message goes to LLM triage.
func (e *Engine) Evaluate(msg models.InboundMessage) Verdict {
	e.mu.RLock()
	defer e.mu.RUnlock()

	now := time.Now()
	for _, r := range e.rules {
		if r.matches(msg, now) {
			return Verdict{Action: r.spec.Action, Reply: r.spec.Reply, Rule: r.spec.Name}
		}
	}
	return Verdict{Action: ActionTriage}
}

func (r *compiledRule) matches(msg models.InboundMessage, now time.Time) bool {
	if len(r.spec.Senders) > 0 && !channels.SenderAllowed(r.spec.Senders, msg.Sender) {
		return false
	}
	if r.subjectRe != nil && !r.subjectRe.MatchString(msg.Subject) {
		return false
	}
	if r.bodyNeedle != "" && !strings.Contains(strings.ToLower(msg.Content), r.bodyNeedle) {
		return false
	}
	if r.spec.MaxAgeHours > 0 {
		age := now.Sub(msg.ReceivedAt)
		if age < time.Duration(r.spec.MaxAgeHours)*time.Hour {
			return false
		}
	}
	return true
}
