package albums

import (
	"encoding/json"
	"fmt"

	"github.com/dmitrijs2005/photogate/internal/common"
)

// Album is one registry entry.
type Album struct {
	Name      string `json:"album_name"`
	IsPrivate bool   `json:"is_private"`
	CoverKey  string `json:"cover_key"`
}

// Document is the whole settings.json. Top-level keys other than "albums"
// are carried through rewrites untouched.
type Document struct {
	Albums []Album
	extra  map[string]json.RawMessage
}

// Has reports whether an album called name is registered.
func (d *Document) Has(name string) bool {
	for _, a := range d.Albums {
		if a.Name == name {
			return true
		}
	}
	return false
}

func (d Document) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(d.extra)+1)
	for k, v := range d.extra {
		out[k] = v
	}
	albums := d.Albums
	if albums == nil {
		albums = []Album{}
	}
	out["albums"] = albums
	return json.Marshal(out)
}

func (d *Document) UnmarshalJSON(b []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}

	var albums []Album
	if v, ok := raw["albums"]; ok {
		if err := json.Unmarshal(v, &albums); err != nil {
			return fmt.Errorf("albums: %w", err)
		}
		delete(raw, "albums")
	}

	d.Albums = albums
	d.extra = raw
	return nil
}

func decode(b []byte) (Document, error) {
	var d Document
	if err := json.Unmarshal(b, &d); err != nil {
		return Document{}, fmt.Errorf("%w: %s: %v", common.ErrMalformedMetadata, common.SettingsKey, err)
	}
	if d.Albums == nil {
		d.Albums = []Album{}
	}
	return d, nil
}
