package backend

import (
	"cmp"
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"inkwell/pkg/schema"
)

// Provider kinds. The set is closed; anything else fails validation.
const (
	ProviderOpenAI     = "openai"
	ProviderGemini     = "gemini"
	ProviderMurf       = "murf"
	ProviderCompatible = "compatible"
)

// Backend roles within the authoring pipeline.
const (
	RoleContent  = "content"
	RoleImage    = "image"
	RoleTechEval = "tech_eval"
	RoleEntEval  = "ent_eval"
	RoleVoice    = "voice"
)

// Provider is one configured generative service bound to a role.
type Provider struct {
	Type      string `json:"type"`
	Role      string `json:"role"`
	APIKey    string `json:"api_key,omitempty"`
	Model     string `json:"model,omitempty"`
	MaxTokens int    `json:"max_tokens,omitempty"`
	BaseURL   string `json:"base_url,omitempty"`
	RPM       int    `json:"rpm,omitempty"`
	Enabled   bool   `json:"enabled"`
}

func (p Provider) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Type, validation.Required,
			validation.In(ProviderOpenAI, ProviderGemini, ProviderMurf, ProviderCompatible)),
		validation.Field(&p.Role, validation.Required,
			validation.In(RoleContent, RoleImage, RoleTechEval, RoleEntEval, RoleVoice)),
		validation.Field(&p.BaseURL, validation.Required.When(p.Type == ProviderCompatible)),
		validation.Field(&p.MaxTokens, validation.Min(0)),
		validation.Field(&p.RPM, validation.Min(0)),
	)
}

// Settings is the persisted backend configuration.
type Settings struct {
	GenAI []Provider `json:"gen_ai"`
}

func (s Settings) Validate() error {
	for i, p := range s.GenAI {
		if err := p.Validate(); err != nil {
			return fmt.Errorf("provider %d: %w", i, err)
		}
	}
	return nil
}

// BuildSet constructs the role set from settings. Roles with no enabled
// provider stay nil; the Set accessors degrade them to ErrUnavailable.
// A later provider for an already-filled role is skipped with a warning.
func BuildSet(ctx context.Context, settings Settings) (*Set, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}

	set := &Set{}
	for _, p := range settings.GenAI {
		if !p.Enabled {
			continue
		}
		if err := bind(ctx, set, p); err != nil {
			return nil, err
		}
	}
	return set, nil
}

func bind(ctx context.Context, set *Set, p Provider) error {
	switch p.Role {
	case RoleContent, RoleTechEval, RoleEntEval:
		text, err := buildText(ctx, p)
		if err != nil {
			return err
		}
		text = Limit(text, p.RPM)
		slot := map[string]*Text{
			RoleContent:  &set.Content,
			RoleTechEval: &set.TechEval,
			RoleEntEval:  &set.EntEval,
		}[p.Role]
		if *slot != nil {
			log.Warn("duplicate provider for role, keeping first", "role", p.Role, "type", p.Type)
			return nil
		}
		*slot = text
		log.Info("backend configured", "role", p.Role, "type", p.Type, "model", p.Model)
	case RoleImage:
		if set.Imager != nil {
			log.Warn("duplicate provider for role, keeping first", "role", p.Role, "type", p.Type)
			return nil
		}
		imager, err := buildImager(ctx, p)
		if err != nil {
			return err
		}
		set.Imager = imager
		log.Info("backend configured", "role", p.Role, "type", p.Type, "model", p.Model)
	case RoleVoice:
		if set.Voice != nil {
			log.Warn("duplicate provider for role, keeping first", "role", p.Role, "type", p.Type)
			return nil
		}
		speaker, err := buildSpeaker(p)
		if err != nil {
			return err
		}
		set.Voice = speaker
		log.Info("backend configured", "role", p.Role, "type", p.Type)
	}
	return nil
}

func buildText(ctx context.Context, p Provider) (Text, error) {
	evaluator := p.Role == RoleTechEval || p.Role == RoleEntEval
	switch p.Type {
	case ProviderOpenAI, ProviderCompatible:
		var o *OpenAI
		if p.Type == ProviderOpenAI {
			o = NewOpenAI(p.APIKey, p.Model, cmp.Or(p.MaxTokens, 4096))
		} else {
			o = NewOpenAICompatible(p.BaseURL, p.APIKey, p.Model, cmp.Or(p.MaxTokens, 4096))
		}
		// Evaluators are held to the ChapterEval shape via structured
		// outputs where the API supports it.
		if evaluator {
			o = o.WithResponseFormat(schema.EvalResponseFormat())
		}
		return o, nil
	case ProviderGemini:
		return NewGemini(ctx, p.APIKey, p.Model, cmp.Or(p.MaxTokens, 4096))
	default:
		return nil, fmt.Errorf("provider type %q cannot serve role %q", p.Type, p.Role)
	}
}

func buildImager(ctx context.Context, p Provider) (Imager, error) {
	switch p.Type {
	case ProviderOpenAI:
		return NewOpenAI(p.APIKey, p.Model, cmp.Or(p.MaxTokens, 4096)), nil
	case ProviderGemini:
		return NewGemini(ctx, p.APIKey, p.Model, cmp.Or(p.MaxTokens, 4096))
	default:
		return nil, fmt.Errorf("provider type %q cannot serve role %q", p.Type, p.Role)
	}
}

func buildSpeaker(p Provider) (Speaker, error) {
	switch p.Type {
	case ProviderOpenAI:
		return NewOpenAI(p.APIKey, p.Model, cmp.Or(p.MaxTokens, 4096)), nil
	case ProviderMurf:
		return NewMurf(p.APIKey, p.Model), nil
	default:
		return nil, fmt.Errorf("provider type %q cannot serve role %q", p.Type, p.Role)
	}
}
