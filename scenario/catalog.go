package scenario

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/Keepitcity/proof/models"
)

// Catalog holds the per-role template pools. Pools is optional in a catalog
// file; when set it replaces DefaultPools for generators built from the file.
type Catalog struct {
	Pools *Pools     `yaml:"pools,omitempty"`
	PM    []Template `yaml:"project_manager"`
	Sales []Template `yaml:"sales"`
}

// DefaultCatalog returns the built-in five PM and five Sales templates
func DefaultCatalog() Catalog {
	return Catalog{
		PM:    append([]Template(nil), pmTemplates...),
		Sales: append([]Template(nil), salesTemplates...),
	}
}

// LoadCatalog reads a YAML catalog file and validates it
func LoadCatalog(path string) (Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Catalog{}, fmt.Errorf("failed to read catalog %s: %w", path, err)
	}
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return Catalog{}, fmt.Errorf("failed to parse catalog %s: %w", path, err)
	}
	if err := c.Validate(); err != nil {
		return Catalog{}, fmt.Errorf("invalid catalog %s: %w", path, err)
	}
	return c, nil
}

// Templates returns the pool for role, or nil for an unknown role
func (c Catalog) Templates(role models.TeamRole) []Template {
	switch role {
	case models.RoleProjectManager:
		return c.PM
	case models.RoleSales:
		return c.Sales
	}
	return nil
}

func (c Catalog) Validate() error {
	var errs []error
	if len(c.PM) == 0 {
		errs = append(errs, errors.New("project_manager: no templates"))
	}
	if len(c.Sales) == 0 {
		errs = append(errs, errors.New("sales: no templates"))
	}
	check := func(section string, templates []Template) {
		for i, t := range templates {
			where := fmt.Sprintf("%s[%d]", section, i)
			if t.Title == "" {
				errs = append(errs, fmt.Errorf("%s: missing title", where))
			}
			if !t.Category.Valid() {
				errs = append(errs, fmt.Errorf("%s: unknown category %q", where, t.Category))
			}
			if !t.Difficulty.Valid() {
				errs = append(errs, fmt.Errorf("%s: unknown difficulty %q", where, t.Difficulty))
			}
			if t.MaxTurns < 0 {
				errs = append(errs, fmt.Errorf("%s: max_turns must not be negative", where))
			}
		}
	}
	check("project_manager", c.PM)
	check("sales", c.Sales)
	return errors.Join(errs...)
}
