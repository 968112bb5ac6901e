package accounts

import (
	"embed"
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/cleared-dev/tilikirja/internal/model"
	"github.com/cleared-dev/tilikirja/internal/store"
)

// Chart scopes, from smallest to largest.
const (
	ScopeBasic    = "basic"
	ScopeStandard = "standard"
	ScopeExtended = "extended"
)

// Scopes lists the available chart templates.
var Scopes = []string{ScopeBasic, ScopeStandard, ScopeExtended}

//go:embed templates/*.yaml
var templates embed.FS

type templateFile struct {
	Extends  string `yaml:"extends"`
	Accounts []struct {
		Number int    `yaml:"number"`
		Type   string `yaml:"type"`
		Name   string `yaml:"name"`
	} `yaml:"accounts"`
}

// DefaultHeaders are the top-level headings of every chart.
func DefaultHeaders() []model.Header {
	return []model.Header{
		{Number: 1000, Level: 1, Name: "ASSETS"},
		{Number: 2000, Level: 1, Name: "LIABILITIES"},
		{Number: 3000, Level: 1, Name: "EQUITY"},
		{Number: 4000, Level: 1, Name: "INCOME"},
		{Number: 5000, Level: 1, Name: "EXPENSES"},
	}
}

// DefaultChart returns the chart template for scope. Larger scopes include
// every account of the smaller ones.
func DefaultChart(scope string) (store.Chart, error) {
	accts, err := loadTemplate(scope, 0)
	if err != nil {
		return store.Chart{}, err
	}
	sort.Slice(accts, func(i, j int) bool { return accts[i].Number < accts[j].Number })
	return store.Chart{Accounts: accts, Headers: DefaultHeaders()}, nil
}

func loadTemplate(scope string, depth int) ([]model.Account, error) {
	if depth > len(Scopes) {
		return nil, fmt.Errorf("chart template %q: extends chain too deep", scope)
	}
	data, err := templates.ReadFile("templates/" + scope + ".yaml")
	if err != nil {
		return nil, fmt.Errorf("unknown chart scope %q", scope)
	}
	var tf templateFile
	if err := yaml.Unmarshal(data, &tf); err != nil {
		return nil, fmt.Errorf("parsing chart template %q: %w", scope, err)
	}

	var accts []model.Account
	if tf.Extends != "" {
		accts, err = loadTemplate(tf.Extends, depth+1)
		if err != nil {
			return nil, err
		}
	}
	for _, a := range tf.Accounts {
		typ, ok := model.ParseAccountType(a.Type)
		if !ok {
			return nil, fmt.Errorf("chart template %q: account %d has invalid type %q", scope, a.Number, a.Type)
		}
		accts = append(accts, model.Account{
			Number: a.Number,
			Type:   typ,
			Ext:    model.AccountExt{Name: a.Name},
		})
	}
	return accts, nil
}
