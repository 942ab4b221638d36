package services

import (
	"context"

	"fintrack/internal/core"
	"fintrack/internal/storage"
)

// CategoryService manages per-user category taxonomies.
type CategoryService struct {
	storage *storage.SQLiteRepository
}

func NewCategoryService(st *storage.SQLiteRepository) *CategoryService {
	return &CategoryService{storage: st}
}

// CategoryNode is a category with its live subcategories attached.
type CategoryNode struct {
	core.Category
	Children []CategoryNode `json:"children,omitempty"`
}

// Create validates and stores a new category. A parent, when given, must
// be a live root category of the same owner and type.
func (s *CategoryService) Create(ctx context.Context, c core.Category) (*core.Category, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	if c.ParentID != nil {
		parent, err := s.storage.GetCategory(ctx, c.UserID, *c.ParentID)
		if err != nil {
			var ve core.ValidationError
			ve.Add("parentId", "parent category does not exist")
			return nil, ve.OrNil()
		}
		var ve core.ValidationError
		if parent.Type != c.Type {
			ve.Add("parentId", "parent category must have the same type")
		}
		if parent.ParentID != nil {
			ve.Add("parentId", "categories can be nested one level deep")
		}
		if err := ve.OrNil(); err != nil {
			return nil, err
		}
	}

	// User-created categories are never defaults.
	c.IsDefault = false
	if err := s.storage.CreateCategory(ctx, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *CategoryService) Get(ctx context.Context, userID, id int64) (*core.Category, error) {
	return s.storage.GetCategory(ctx, userID, id)
}

func (s *CategoryService) List(ctx context.Context, userID int64, typ core.TransactionType) ([]core.Category, error) {
	return s.storage.ListCategories(ctx, userID, typ)
}

// Hierarchy returns the user's categories as root nodes with children.
func (s *CategoryService) Hierarchy(ctx context.Context, userID int64, typ core.TransactionType) ([]CategoryNode, error) {
	flat, err := s.storage.ListCategories(ctx, userID, typ)
	if err != nil {
		return nil, err
	}

	children := make(map[int64][]CategoryNode)
	var roots []CategoryNode
	for _, c := range flat {
		if c.ParentID != nil {
			children[*c.ParentID] = append(children[*c.ParentID], CategoryNode{Category: c})
		}
	}
	for _, c := range flat {
		if c.ParentID == nil {
			roots = append(roots, CategoryNode{Category: c, Children: children[c.ID]})
		}
	}
	return roots, nil
}

// Update changes name, color, icon and budget. Type and parent are fixed
// at creation; the handler never passes them through.
func (s *CategoryService) Update(ctx context.Context, userID, id int64, name, color, icon string, budget core.Money) (*core.Category, error) {
	existing, err := s.storage.GetCategory(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	existing.Name = name
	existing.Color = color
	existing.Icon = icon
	existing.MonthlyBudget = budget
	if err := existing.Validate(); err != nil {
		return nil, err
	}

	if err := s.storage.UpdateCategory(ctx, existing); err != nil {
		return nil, err
	}
	return s.storage.GetCategory(ctx, userID, id)
}

// Delete tombstones a category and its live subcategories. Transactions
// that reference them keep doing so for historical reporting.
func (s *CategoryService) Delete(ctx context.Context, userID, id int64) error {
	if _, err := s.storage.GetCategory(ctx, userID, id); err != nil {
		return err
	}

	flat, err := s.storage.ListCategories(ctx, userID, "")
	if err != nil {
		return err
	}
	for _, c := range flat {
		if c.ParentID != nil && *c.ParentID == id {
			if err := s.storage.SoftDeleteCategory(ctx, userID, c.ID); err != nil {
				return err
			}
		}
	}
	return s.storage.SoftDeleteCategory(ctx, userID, id)
}
