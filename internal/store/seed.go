package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/marcus/trellis/internal/apperr"
	"github.com/marcus/trellis/internal/customfields"
	"github.com/marcus/trellis/internal/tasks"
)

// Seed is a YAML document describing boards to import.
type Seed struct {
	Priorities   []tasks.Priority `yaml:"priorities"`
	Users        []tasks.User     `yaml:"users"`
	Tags         []tasks.Tag      `yaml:"tags"`
	Lists        []SeedList       `yaml:"lists"`
	Dependencies []SeedDependency `yaml:"dependencies"`
}

// SeedList is a list with its statuses, fields and tasks.
type SeedList struct {
	ID       string         `yaml:"id"`
	Name     string         `yaml:"name"`
	Statuses []tasks.Status `yaml:"statuses"`
	Fields   []SeedField    `yaml:"fields"`
	Tasks    []SeedTask     `yaml:"tasks"`
}

// SeedField is a custom field definition.
type SeedField struct {
	ID      string   `yaml:"id"`
	Name    string   `yaml:"name"`
	Type    string   `yaml:"type"`
	Options []string `yaml:"options"`
}

// SeedTask is a task. Values maps custom field ids to raw values.
type SeedTask struct {
	ID          string         `yaml:"id"`
	Title       string         `yaml:"title"`
	Description string         `yaml:"description"`
	Status      string         `yaml:"status"`
	Priority    string         `yaml:"priority"`
	Due         *tasks.Date    `yaml:"due"`
	Position    *int           `yaml:"position"`
	Archived    bool           `yaml:"archived"`
	Assignees   []string       `yaml:"assignees"`
	Tags        []string       `yaml:"tags"`
	Values      map[string]any `yaml:"values"`
}

// SeedDependency is applied through the dependency manager after import.
type SeedDependency struct {
	Task      string `yaml:"task"`
	DependsOn string `yaml:"dependsOn"`
	Type      string `yaml:"type"`
}

// ImportResult counts imported rows.
type ImportResult struct {
	Lists  int `json:"lists"`
	Tasks  int `json:"tasks"`
	Fields int `json:"fields"`
	Values int `json:"values"`
}

// ParseSeed decodes a seed document.
func ParseSeed(data []byte) (*Seed, error) {
	var seed Seed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, apperr.Validation("malformed seed file: %v", err)
	}
	return &seed, nil
}

// Import writes everything in seed except dependencies in one transaction.
// Missing ids are generated; a failure rolls the whole import back.
func (s *Store) Import(ctx context.Context, seed *Seed) (ImportResult, error) {
	var res ImportResult
	now := s.now()

	err := s.db.WithTx(ctx, func(tx *sql.Tx) error {
		stmts := map[string]string{
			"priority": `INSERT INTO priorities (id, name, position) VALUES (?, ?, ?)`,
			"user":     `INSERT INTO users (id, name) VALUES (?, ?)`,
			"tag":      `INSERT INTO tags (id, name) VALUES (?, ?)`,
			"list":     `INSERT INTO lists (id, name, created_at) VALUES (?, ?, ?)`,
			"status":   `INSERT INTO statuses (id, list_id, name, position) VALUES (?, ?, ?, ?)`,
			"field":    `INSERT INTO custom_fields (id, list_id, name, type, config, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
			"task": `INSERT INTO tasks (id, list_id, title, description, status_id, priority_id, due_date, order_position, archived, created_at, updated_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			"assignee": `INSERT INTO task_assignees (task_id, user_id) VALUES (?, ?)`,
			"tagging":  `INSERT INTO task_tags (task_id, tag_id) VALUES (?, ?)`,
			"value": `INSERT INTO custom_field_values (id, task_id, field_id, text_value, number_value, date_value, created_at, updated_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		}
		prepared := make(map[string]*sql.Stmt, len(stmts))
		for name, query := range stmts {
			stmt, err := tx.PrepareContext(ctx, query)
			if err != nil {
				return fmt.Errorf("prepare %s insert: %w", name, err)
			}
			defer func() { _ = stmt.Close() }()
			prepared[name] = stmt
		}
		insert := func(name string, args ...any) error {
			if _, err := prepared[name].ExecContext(ctx, args...); err != nil {
				return constraintError(err, "import %s %v", name, args[0])
			}
			return nil
		}

		for _, p := range seed.Priorities {
			if err := insert("priority", orNewID(p.ID), p.Name, p.Position); err != nil {
				return err
			}
		}
		for _, u := range seed.Users {
			if err := insert("user", orNewID(u.ID), u.Name); err != nil {
				return err
			}
		}
		for _, t := range seed.Tags {
			if err := insert("tag", orNewID(t.ID), t.Name); err != nil {
				return err
			}
		}

		for _, l := range seed.Lists {
			listID := orNewID(l.ID)
			if err := insert("list", listID, l.Name, now); err != nil {
				return err
			}
			res.Lists++

			for _, st := range l.Statuses {
				if err := insert("status", orNewID(st.ID), listID, st.Name, st.Position); err != nil {
					return err
				}
			}

			fields := make(map[string]customfields.Field, len(l.Fields))
			for _, sf := range l.Fields {
				f := customfields.Field{
					ID:     orNewID(sf.ID),
					ListID: listID,
					Name:   sf.Name,
					Type:   customfields.FieldType(sf.Type),
					Config: customfields.Config{Options: sf.Options},
				}
				if err := customfields.ValidateField(f); err != nil {
					return err
				}
				config, err := json.Marshal(f.Config)
				if err != nil {
					return fmt.Errorf("encoding field config: %w", err)
				}
				if err := insert("field", f.ID, listID, f.Name, string(f.Type), string(config), now); err != nil {
					return err
				}
				fields[f.ID] = f
				res.Fields++
			}

			for i, st := range l.Tasks {
				taskID := orNewID(st.ID)
				position := i
				if st.Position != nil {
					position = *st.Position
				}
				err := insert("task", taskID, listID, st.Title, st.Description,
					nullable(tasks.StringPtr(st.Status)), nullable(tasks.StringPtr(st.Priority)),
					dueValue(st.Due), position, boolInt(st.Archived), now, now)
				if err != nil {
					return err
				}
				res.Tasks++

				for _, userID := range st.Assignees {
					if err := insert("assignee", taskID, userID); err != nil {
						return err
					}
				}
				for _, tagID := range st.Tags {
					if err := insert("tagging", taskID, tagID); err != nil {
						return err
					}
				}
				for fieldID, raw := range st.Values {
					f, ok := fields[fieldID]
					if !ok {
						return apperr.Validation("task %q references custom field %s outside list %q", st.Title, fieldID, l.Name)
					}
					v, err := customfields.Validate(raw, f)
					if err != nil {
						return err
					}
					text, number, date := customfields.Columns(v)
					if err := insert("value", newID(), taskID, fieldID, text, number, date, now, now); err != nil {
						return err
					}
					res.Values++
				}
			}
		}
		return nil
	})
	if err != nil {
		return ImportResult{}, err
	}

	s.log.Info().Int("lists", res.Lists).Int("tasks", res.Tasks).Int("fields", res.Fields).Int("values", res.Values).Msg("seed imported")
	return res, nil
}

func orNewID(id string) string {
	if id == "" {
		return newID()
	}
	return id
}
