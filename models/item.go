package models

// ItemResponse is the raw item document returned by the static-data API and
// cached on disk under the items directory.
type ItemResponse struct {
	ID           int64        `json:"id"`
	Name         string       `json:"name"`
	Quality      NamedType    `json:"quality"`
	Level        int          `json:"level"`
	ItemClass    NamedRef     `json:"item_class"`
	ItemSubclass NamedRef     `json:"item_subclass"`
	Media        ItemMediaRef `json:"media"`
	ExpansionID  int64        `json:"expansion_id"`
}

// NamedType is the upstream's {type, name} pair, e.g. quality tiers.
type NamedType struct {
	Type string `json:"type"`
	Name string `json:"name"`
}

// NamedRef is an id+name reference such as item class or subclass.
type NamedRef struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// ItemMediaRef points at the media document holding the icon assets.
type ItemMediaRef struct {
	ID  int64    `json:"id"`
	Key MediaKey `json:"key"`
}

// MediaKey wraps the href of a media document.
type MediaKey struct {
	Href string `json:"href"`
}

// MediaResponse is the raw media document; Assets holds the icon URLs.
type MediaResponse struct {
	ID     int64        `json:"id"`
	Assets []MediaAsset `json:"assets"`
}

// MediaAsset is one downloadable asset inside a media document.
type MediaAsset struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Metadata flattens an item document into the read-only lookup record used
// by the rule engine and selector. The icon reference stays a URL; asset
// download is outside this pipeline.
func (r *ItemResponse) Metadata() ItemMetadata {
	return ItemMetadata{
		ID:          r.ID,
		Name:        r.Name,
		Icon:        r.Media.Key.Href,
		Quality:     r.Quality.Type,
		Class:       r.ItemClass.Name,
		Subclass:    r.ItemSubclass.Name,
		Level:       r.Level,
		ExpansionID: r.ExpansionID,
	}
}
