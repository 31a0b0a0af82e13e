package identity

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/goliatone/go-account-settings/core"
	goerrors "github.com/goliatone/go-errors"
)

// Policy is one document the identity server requires the user to accept.
type Policy struct {
	ID           string
	Version      string
	Translations map[string]PolicyTranslation
}

type PolicyTranslation struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// URLs returns the document URL of every translation, ordered by language.
func (p Policy) URLs() []string {
	urls := make([]string, 0, len(p.Translations))
	for _, language := range sortedKeys(p.Translations) {
		if value := strings.TrimSpace(p.Translations[language].URL); value != "" {
			urls = append(urls, value)
		}
	}
	return urls
}

type termsResponse struct {
	Policies map[string]map[string]json.RawMessage `json:"policies"`
}

// policies flattens the terms body. Each policy object holds a "version"
// string next to one object per language.
func (r termsResponse) policies() ([]Policy, error) {
	out := make([]Policy, 0, len(r.Policies))
	for _, id := range sortedKeys(r.Policies) {
		raw := r.Policies[id]
		policy := Policy{ID: id, Translations: map[string]PolicyTranslation{}}
		for key, value := range raw {
			if key == "version" {
				if err := json.Unmarshal(value, &policy.Version); err != nil {
					return nil, malformedTerms(err)
				}
				continue
			}
			var translation PolicyTranslation
			if err := json.Unmarshal(value, &translation); err != nil {
				return nil, malformedTerms(err)
			}
			policy.Translations[key] = translation
		}
		out = append(out, policy)
	}
	return out, nil
}

func malformedTerms(err error) error {
	return goerrors.Wrap(err, goerrors.CategoryExternal, "identity: malformed terms response").
		WithCode(http.StatusBadGateway).
		WithTextCode(core.SettingsErrorExternalFailure)
}
