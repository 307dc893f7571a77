// Package school holds the class and subject catalog. Content records
// reference both canonically by id; names are display labels only.
package school

type (
	Class struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}

	Subject struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
)

var (
	Classes = []Class{
		{ID: "year-7", Name: "Year 7"},
		{ID: "year-8", Name: "Year 8"},
		{ID: "year-9", Name: "Year 9"},
		{ID: "year-10", Name: "Year 10"},
		{ID: "year-11", Name: "Year 11"},
		{ID: "year-12", Name: "Year 12"},
	}

	Subjects = []Subject{
		{ID: "math", Name: "Mathematics"},
		{ID: "phy", Name: "Physics"},
		{ID: "chem", Name: "Chemistry"},
		{ID: "bio", Name: "Biology"},
		{ID: "econ", Name: "Economics"},
		{ID: "biz", Name: "Business Studies"},
		{ID: "fmath", Name: "Further Maths"},
		{ID: "facc", Name: "F-Accounting"},
		{ID: "comm", Name: "Commerce"},
		{ID: "fandn", Name: "Food and Nutrition"},
		{ID: "geo", Name: "Geography"},
		{ID: "hist", Name: "History"},
		{ID: "coding", Name: "Coding"},
		{ID: "lit", Name: "Lit-in-English"},
		{ID: "robo", Name: "Robotics"},
		{ID: "cs", Name: "Computer Science"},
		{ID: "eng", Name: "English Language"},
		{ID: "art", Name: "Art & Design"},
	}
)

func ClassByID(id string) (Class, bool) {
	for _, c := range Classes {
		if c.ID == id {
			return c, true
		}
	}
	return Class{}, false
}

func SubjectByID(id string) (Subject, bool) {
	for _, s := range Subjects {
		if s.ID == id {
			return s, true
		}
	}
	return Subject{}, false
}

// SubjectName resolves a subject id to its display name, falling back to the
// id itself for unknown references.
func SubjectName(id string) string {
	if s, ok := SubjectByID(id); ok {
		return s.Name
	}
	return id
}

// SubjectIDByName maps a display name back to its id. Legacy teacher profiles
// stored subject names; this is the one place that translation is allowed.
func SubjectIDByName(name string) (string, bool) {
	for _, s := range Subjects {
		if s.Name == name {
			return s.ID, true
		}
	}
	return "", false
}

// InvalidSubjectIDs returns the ids in `ids` that are not in the catalog.
func InvalidSubjectIDs(ids []string) []string {
	var bad []string
	for _, id := range ids {
		if _, ok := SubjectByID(id); !ok {
			bad = append(bad, id)
		}
	}
	return bad
}
