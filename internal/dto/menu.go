package dto

import "github.com/Additional-Code/hatch/internal/entity"

// MenuItemResponse represents a menu item.
type MenuItemResponse struct {
	ID           int64  `json:"id"`
	CategoryID   int64  `json:"categoryId"`
	Category     string `json:"category,omitempty"`
	Name         string `json:"name"`
	Description  string `json:"description,omitempty"`
	Price        string `json:"price"`
	IsAvailable  bool   `json:"isAvailable"`
	IsVegetarian bool   `json:"isVegetarian"`
	IsVegan      bool   `json:"isVegan"`
	IsGlutenFree bool   `json:"isGlutenFree"`
}

// NewMenuList maps menu items.
func NewMenuList(items []*entity.MenuItem) []MenuItemResponse {
	out := make([]MenuItemResponse, 0, len(items))
	for _, it := range items {
		resp := MenuItemResponse{
			ID:           it.ID,
			CategoryID:   it.CategoryID,
			Name:         it.Name,
			Description:  it.Description,
			Price:        it.Price.StringFixed(2),
			IsAvailable:  it.IsAvailable,
			IsVegetarian: it.IsVegetarian,
			IsVegan:      it.IsVegan,
			IsGlutenFree: it.IsGlutenFree,
		}
		if it.Category != nil {
			resp.Category = it.Category.Name
		}
		out = append(out, resp)
	}
	return out
}
