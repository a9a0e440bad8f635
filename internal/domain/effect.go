package domain

// Effect is a curated prompt fragment users can layer onto a generation.
type Effect struct {
	ID           string
	Name         string
	Category     string
	Prompt       string
	DisplayOrder int
}
