package ingestion

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/theorygraph/backend/internal/storage/models"
)

// InputError marks a record that failed boundary validation. Such records
// are quarantined for inspection, never dropped silently and never allowed
// deeper into the pipeline.
type InputError struct {
	Field  string
	Reason string
}

func (e *InputError) Error() string {
	return fmt.Sprintf("invalid input: %s: %s", e.Field, e.Reason)
}

const maxNameLength = 300

// mentionEnvelope is the wire shape of one extracted mention before it is
// narrowed into its typed form. Unknown extra fields are ignored; extraction
// output varies too much to reject on them.
type mentionEnvelope struct {
	Kind         string   `json:"kind"`
	Name         string   `json:"name"`
	Section      string   `json:"section"`
	Description  string   `json:"description"`
	Aliases      []string `json:"aliases"`
	UsageContext string   `json:"usage_context"`
	Role         string   `json:"role"`
	MethodType   string   `json:"method_type"`
	Version      string   `json:"version"`
	Context      string   `json:"context"`
	VariableType string   `json:"variable_type"`
}

// ParseMention validates one raw record and narrows it into the typed
// mention for its kind. Free-text fields are sanitized here so nothing past
// this boundary sees markup or raw whitespace.
func ParseMention(raw json.RawMessage, paperID string) (models.Mention, *InputError) {
	var env mentionEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, &InputError{Field: "mention", Reason: "not a JSON object: " + err.Error()}
	}

	kind, ok := models.ParseEntityKind(env.Kind)
	if !ok {
		return nil, &InputError{Field: "kind", Reason: fmt.Sprintf("unknown kind %q", env.Kind)}
	}

	name := sanitizeText(env.Name)
	if name == "" {
		return nil, &InputError{Field: "name", Reason: "empty after sanitization"}
	}
	if len(name) > maxNameLength {
		return nil, &InputError{Field: "name", Reason: fmt.Sprintf("longer than %d characters", maxNameLength)}
	}

	aliases := make([]string, 0, len(env.Aliases))
	for _, alias := range env.Aliases {
		if cleaned := sanitizeText(alias); cleaned != "" && len(cleaned) <= maxNameLength {
			aliases = append(aliases, cleaned)
		}
	}

	base := models.BaseMention{
		RawName:      name,
		PaperID:      paperID,
		Section:      sanitizeText(env.Section),
		Description:  sanitizeText(env.Description),
		Aliases:      aliases,
		UsageContext: sanitizeText(env.UsageContext),
	}

	switch kind {
	case models.KindTheory:
		return models.TheoryMention{BaseMention: base, Role: strings.ToLower(strings.TrimSpace(env.Role))}, nil
	case models.KindMethod:
		return models.MethodMention{BaseMention: base, MethodType: sanitizeText(env.MethodType)}, nil
	case models.KindSoftware:
		return models.SoftwareMention{BaseMention: base, Version: strings.TrimSpace(env.Version)}, nil
	case models.KindPhenomenon:
		return models.PhenomenonMention{BaseMention: base, Context: sanitizeText(env.Context)}, nil
	case models.KindVariable:
		return models.VariableMention{BaseMention: base, VariableType: sanitizeText(env.VariableType)}, nil
	default:
		return nil, &InputError{Field: "kind", Reason: fmt.Sprintf("unhandled kind %q", kind)}
	}
}

// ParseRelationship validates one extracted theory-explains-phenomenon
// claim. A blank role or usage context passes validation; the scorer fails
// closed on those instead of the boundary rejecting the whole claim.
func ParseRelationship(raw json.RawMessage, paperID string) (models.RelationshipMention, *InputError) {
	var rel models.RelationshipMention
	if err := json.Unmarshal(raw, &rel); err != nil {
		return models.RelationshipMention{}, &InputError{Field: "relationship", Reason: "not a JSON object: " + err.Error()}
	}

	rel.TheoryName = sanitizeText(rel.TheoryName)
	rel.PhenomenonName = sanitizeText(rel.PhenomenonName)
	rel.Section = sanitizeText(rel.Section)
	rel.UsageContext = sanitizeText(rel.UsageContext)
	rel.Role = strings.ToLower(strings.TrimSpace(rel.Role))
	rel.PaperID = paperID

	if rel.TheoryName == "" {
		return models.RelationshipMention{}, &InputError{Field: "theory_name", Reason: "empty after sanitization"}
	}
	if len(rel.TheoryName) > maxNameLength {
		return models.RelationshipMention{}, &InputError{Field: "theory_name", Reason: fmt.Sprintf("longer than %d characters", maxNameLength)}
	}
	if rel.PhenomenonName == "" {
		return models.RelationshipMention{}, &InputError{Field: "phenomenon_name", Reason: "empty after sanitization"}
	}
	if len(rel.PhenomenonName) > maxNameLength {
		return models.RelationshipMention{}, &InputError{Field: "phenomenon_name", Reason: fmt.Sprintf("longer than %d characters", maxNameLength)}
	}

	return rel, nil
}
