package handlers

import "net/http"

type effectView struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Category     string `json:"category,omitempty"`
	Prompt       string `json:"prompt"`
	DisplayOrder int    `json:"display_order"`
}

// EffectsList returns the effect library in display order.
func (a *App) EffectsList(w http.ResponseWriter, r *http.Request) {
	effects, err := a.Effects.List(r.Context())
	if err != nil {
		a.error(w, http.StatusInternalServerError, "internal", "failed to list effects")
		return
	}
	items := make([]effectView, 0, len(effects))
	for _, e := range effects {
		items = append(items, effectView{
			ID:           e.ID,
			Name:         e.Name,
			Category:     e.Category,
			Prompt:       e.Prompt,
			DisplayOrder: e.DisplayOrder,
		})
	}
	a.json(w, http.StatusOK, map[string]any{"items": items})
}
