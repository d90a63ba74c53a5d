package testdata

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/brianvoe/gofakeit/v6"
	"gorm.io/datatypes"

	"github.com/jordanlanch/feedbackhub/pkg/models"
)

// ProjectConfig configures demo project generation
type ProjectConfig struct {
	ProjectID   string
	Flags       int
	Experiments int
	Variants    int   // per experiment, at least 2
	Seed        int64 // 0 picks a random seed
}

// DefaultProjectConfig returns a small demo project
func DefaultProjectConfig(projectID string) ProjectConfig {
	return ProjectConfig{
		ProjectID:   projectID,
		Flags:       8,
		Experiments: 3,
		Variants:    3,
	}
}

// Seeder persists generated definitions
type Seeder interface {
	CreateFlag(ctx context.Context, flag *models.Flag) error
	CreateExperiment(ctx context.Context, exp *models.Experiment) error
}

// SeedResult lists what was created
type SeedResult struct {
	Flags       []models.Flag
	Experiments []models.Experiment
}

var flagTypes = []string{"boolean", "string", "number", "json"}

var rolloutSteps = []int{0, 10, 25, 50, 100}

var goalTypes = []string{"click", "pageview", "form_submit", "custom"}

var countries = []string{"US", "GB", "DE", "ES", "FR", "CA", "AU"}

var plans = []string{"free", "starter", "pro", "business"}

// Generator builds realistic flag and experiment definitions
type Generator struct {
	faker *gofakeit.Faker
}

// NewGenerator creates a generator; the same seed yields the same data
func NewGenerator(seed int64) *Generator {
	return &Generator{faker: gofakeit.New(seed)}
}

// Slug builds a kebab-case key from a few hacker words
func (g *Generator) Slug() string {
	words := []string{g.faker.HackerAdjective(), g.faker.HackerNoun()}
	slug := strings.ToLower(strings.Join(words, "-"))
	return strings.NewReplacer(" ", "-", "'", "", ".", "").Replace(slug)
}

// Flag generates a flag of a random type. Roughly a third carry targeting rules.
func (g *Generator) Flag(projectID string, n int) *models.Flag {
	flagType := g.faker.RandomString(flagTypes)

	flag := &models.Flag{
		ProjectID:         projectID,
		Key:               fmt.Sprintf("%s-%d", g.Slug(), n),
		Name:              g.faker.BuzzWord() + " " + g.faker.HackerNoun(),
		Description:       g.faker.Sentence(8),
		FlagType:          flagType,
		IsEnabled:         g.faker.Number(0, 9) < 8,
		DefaultValue:      g.defaultValue(flagType),
		RolloutPercentage: rolloutSteps[g.faker.Number(0, len(rolloutSteps)-1)],
	}

	if g.faker.Number(0, 2) == 0 {
		flag.TargetingRules = g.rules()
	}

	return flag
}

func (g *Generator) defaultValue(flagType string) datatypes.JSON {
	var v any
	switch flagType {
	case "boolean":
		v = true
	case "string":
		v = g.faker.HackerVerb()
	case "number":
		v = g.faker.Number(1, 1000)
	default:
		v = map[string]any{
			"color": g.faker.HexColor(),
			"limit": g.faker.Number(5, 50),
		}
	}
	return mustJSON(v)
}

func (g *Generator) rules() datatypes.JSON {
	picked := []any{
		g.faker.RandomString(countries),
		g.faker.RandomString(countries),
	}

	rules := []map[string]any{
		{"attribute": "country", "operator": "in", "value": picked},
	}
	if g.faker.Bool() {
		rules = append(rules, map[string]any{
			"attribute": "plan", "operator": "equals", "value": g.faker.RandomString(plans),
		})
	}
	return mustJSON(rules)
}

// Experiment generates a running experiment with variants weights summing to
// 100. The first variant is the control.
func (g *Generator) Experiment(projectID string, n, variants int) *models.Experiment {
	if variants < 2 {
		variants = 2
	}

	exp := &models.Experiment{
		ProjectID:         projectID,
		Key:               fmt.Sprintf("%s-test-%d", g.Slug(), n),
		Name:              capitalize(g.faker.HackerAdjective()) + " " + g.faker.HackerNoun() + " test",
		Description:       g.faker.Sentence(10),
		Status:            models.StatusRunning,
		TrafficAllocation: []int{50, 80, 100}[g.faker.Number(0, 2)],
	}

	for i, weight := range SplitWeights(variants) {
		key := "control"
		if i > 0 {
			key = fmt.Sprintf("variant-%c", 'a'+i-1)
		}
		exp.Variants = append(exp.Variants, models.Variant{
			Key:               key,
			Name:              capitalize(key),
			TrafficPercentage: weight,
			IsControl:         i == 0,
			VisualChanges:     g.changes(i == 0),
			Position:          i,
		})
	}

	for i := 0; i < g.faker.Number(1, 2); i++ {
		goalType := g.faker.RandomString(goalTypes)
		goal := models.Goal{
			Name: g.faker.HackerVerb() + " " + g.faker.HackerNoun(),
			Type: goalType,
		}
		switch goalType {
		case "click", "form_submit":
			sel := "#" + g.Slug()
			goal.Selector = &sel
		case "pageview":
			u := "/" + g.Slug()
			goal.URLPattern = &u
		}
		exp.Goals = append(exp.Goals, goal)
	}

	return exp
}

func (g *Generator) changes(control bool) datatypes.JSON {
	if control {
		return mustJSON([]any{})
	}
	return mustJSON([]map[string]any{
		{"selector": "#" + g.Slug(), "property": "background-color", "value": g.faker.HexColor()},
		{"selector": "h1", "property": "text", "value": g.faker.Sentence(4)},
	})
}

// SplitWeights divides 100 across n variants; the remainder goes to the first
func SplitWeights(n int) []int {
	if n <= 0 {
		return nil
	}
	weights := make([]int, n)
	for i := range weights {
		weights[i] = 100 / n
	}
	weights[0] += 100 % n
	return weights
}

// VisitorIDs returns n random visitor identifiers
func (g *Generator) VisitorIDs(n int) []string {
	ids := make([]string, n)
	for i := range ids {
		ids[i] = g.faker.UUID()
	}
	return ids
}

// SeedProject generates and persists a demo project
func SeedProject(ctx context.Context, s Seeder, cfg ProjectConfig) (*SeedResult, error) {
	seed := cfg.Seed
	if seed == 0 {
		seed = int64(gofakeit.Number(1, 1<<30))
	}
	g := NewGenerator(seed)
	res := &SeedResult{}

	for i := 0; i < cfg.Flags; i++ {
		flag := g.Flag(cfg.ProjectID, i+1)
		if err := s.CreateFlag(ctx, flag); err != nil {
			return res, fmt.Errorf("failed to seed flag %d: %w", i+1, err)
		}
		res.Flags = append(res.Flags, *flag)
	}

	for i := 0; i < cfg.Experiments; i++ {
		exp := g.Experiment(cfg.ProjectID, i+1, cfg.Variants)
		if err := s.CreateExperiment(ctx, exp); err != nil {
			return res, fmt.Errorf("failed to seed experiment %d: %w", i+1, err)
		}
		res.Experiments = append(res.Experiments, *exp)
	}

	return res, nil
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func mustJSON(v any) datatypes.JSON {
	b, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("testdata: marshal %T: %v", v, err))
	}
	return datatypes.JSON(b)
}
