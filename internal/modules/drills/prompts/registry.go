package prompts

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"sync"
	"text/template"
)

type Validator func(Input) error

// Spec is the declaration format for a prompt. System and User are Go
// templates over Input.
type Spec struct {
	Name       PromptName
	Version    int
	System     string
	User       string
	Validators []Validator
}

type Template struct {
	Name     PromptName
	Version  int
	System   func(Input) string
	User     func(Input) string
	Validate Validator
}

var (
	registry     = map[PromptName]Template{}
	registerOnce sync.Once
)

func MakeTemplate(s Spec) (Template, error) {
	if strings.TrimSpace(string(s.Name)) == "" {
		return Template{}, fmt.Errorf("missing prompt name")
	}
	if s.Version <= 0 {
		return Template{}, fmt.Errorf("invalid version for %s", s.Name)
	}
	sysT, err := template.New("system").Option("missingkey=zero").Parse(s.System)
	if err != nil {
		return Template{}, fmt.Errorf("%s system template parse: %w", s.Name, err)
	}
	userT, err := template.New("user").Option("missingkey=zero").Parse(s.User)
	if err != nil {
		return Template{}, fmt.Errorf("%s user template parse: %w", s.Name, err)
	}
	render := func(t *template.Template, in Input) string {
		var b bytes.Buffer
		_ = t.Execute(&b, in)
		return strings.TrimSpace(b.String())
	}
	tt := Template{
		Name:    s.Name,
		Version: s.Version,
		System:  func(in Input) string { return render(sysT, in) },
		User:    func(in Input) string { return render(userT, in) },
	}
	if len(s.Validators) > 0 {
		tt.Validate = func(in Input) error {
			for _, v := range s.Validators {
				if v == nil {
					continue
				}
				if err := v(in); err != nil {
					return err
				}
			}
			return nil
		}
	}
	return tt, nil
}

func RegisterSpec(s Spec) {
	t, err := MakeTemplate(s)
	if err != nil {
		panic(err)
	}
	registry[t.Name] = t
}

// Build renders the named prompt.
func Build(name PromptName, in Input) (Prompt, error) {
	registerOnce.Do(registerAll)
	t, ok := registry[name]
	if !ok {
		return Prompt{}, fmt.Errorf("unknown prompt: %s", string(name))
	}
	if t.Validate != nil {
		if err := t.Validate(in); err != nil {
			return Prompt{}, fmt.Errorf("%s: %w", string(name), err)
		}
	}
	return Prompt{
		Name:    string(t.Name),
		Version: t.Version,
		System:  applyStyle(t.System(in)),
		User:    t.User(in),
	}, nil
}

func requireWords(in Input) error {
	if strings.TrimSpace(in.WordsJSON) == "" || in.Count <= 0 {
		return errors.New("no words to render")
	}
	return nil
}
