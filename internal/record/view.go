package record

// View is the JSON presentation of a record: its fields plus the full
// derived tag set.
type View struct {
	Type   string            `json:"type"`
	Record Record            `json:"record"`
	Tags   map[string]string `json:"tags"`
}

func NewView(r Record) View {
	return View{Type: r.TypeName(), Record: r, Tags: DeriveTags(r)}
}
