package preview

// Query is the paged preview request sent upstream.
type Query struct {
	Start int    `json:"start"`
	Count int    `json:"count"`
	Query string `json:"query,omitempty"`
}

// Response is the raw paged preview response from the metadata service.
type Response struct {
	Start  int        `json:"start"`
	Count  int        `json:"count"`
	Total  int        `json:"total"`
	Groups []RawGroup `json:"groups"`
}

// RawGroup is a server-side grouping of previewed entities. Groups recurse:
// a group may carry nested sub-groups alongside its own entity list, and the
// same logical group can arrive split across sections.
type RawGroup struct {
	Type         string         `json:"type"`
	Label        string         `json:"label,omitempty"`
	Total        int            `json:"total"`
	StatusCounts map[string]int `json:"statusCounts,omitempty"`
	Entities     []RawEntity    `json:"entities,omitempty"`
	Groups       []RawGroup     `json:"groups,omitempty"`
}

// RawEntity is one previewed entity as the server sends it, possibly with
// nested children of a different entity type.
type RawEntity struct {
	URN                 string      `json:"urn,omitempty"`
	Type                string      `json:"type"`
	Name                string      `json:"name"`
	PreviousName        string      `json:"previousName,omitempty"`
	Description         *string     `json:"description,omitempty"`
	PreviousDescription *string     `json:"previousDescription,omitempty"`
	Status              string      `json:"status,omitempty"`
	Path                []string    `json:"path,omitempty"`
	ParentURN           *string     `json:"parentUrn,omitempty"`
	Children            []RawEntity `json:"children,omitempty"`
	Aspects             []RawAspect `json:"aspects,omitempty"`
}

// RawAspect is one aspect delta as the server sends it.
type RawAspect struct {
	AspectName    string  `json:"aspectName"`
	DisplayName   string  `json:"displayName,omitempty"`
	Description   *string `json:"description,omitempty"`
	NewValue      *string `json:"newValue,omitempty"`
	PreviousValue *string `json:"previousValue,omitempty"`
	ChangeType    string  `json:"changeType,omitempty"`
}
