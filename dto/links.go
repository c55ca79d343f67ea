package dto

type Link struct {
	Href   string `json:"href"`
	Method string `json:"method,omitempty"` // Optional: GET, POST, PUT, DELETE
}

type Links map[string]Link

func projectLinks(id string) Links {
	base := "/api/projects/" + id
	return Links{
		"self":   {Href: base},
		"update": {Href: base, Method: "PUT"},
		"delete": {Href: base, Method: "DELETE"},
		"tasks":  {Href: base + "/tasks"},
		"notes":  {Href: base + "/notes"},
	}
}

func taskLinks(id, projectID string) Links {
	base := "/api/tasks/" + id
	return Links{
		"self":     {Href: base},
		"update":   {Href: base, Method: "PUT"},
		"delete":   {Href: base, Method: "DELETE"},
		"toggle":   {Href: base + "/toggle", Method: "POST"},
		"reminder": {Href: base + "/reminder", Method: "PUT"},
		"project":  {Href: "/api/projects/" + projectID},
	}
}

func noteLinks(id, projectID string) Links {
	base := "/api/notes/" + id
	return Links{
		"self":    {Href: base},
		"update":  {Href: base, Method: "PUT"},
		"delete":  {Href: base, Method: "DELETE"},
		"project": {Href: "/api/projects/" + projectID},
	}
}
