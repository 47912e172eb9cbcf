package verify

// peopleResponse is the directory's OSDI people listing
type peopleResponse struct {
	Embedded struct {
		People []person `json:"osdi:people"`
	} `json:"_embedded"`
}

type person struct {
	CustomFields map[string]string `json:"custom_fields"`
}

// isMember reports whether any returned person carries the membership-status
// field with an affirmative value.
func (r *peopleResponse) isMember(field string) bool {
	for _, p := range r.Embedded.People {
		if p.CustomFields[field] == "True" {
			return true
		}
	}
	return false
}
