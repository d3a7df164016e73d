package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"prestadash/internal/model"
)

// ==================== Interface ====================

// ProductRepository persists principal and attribute product rows.
type ProductRepository interface {
	Create(ctx context.Context, product *model.Product) error
	GetByID(ctx context.Context, id int64) (*model.Product, error)
	UpdateFields(ctx context.Context, id int64, fields map[string]interface{}) error
	Delete(ctx context.Context, id int64) error

	// FindPrincipal looks up a non-attribute product of the site by remote id,
	// or by reference when the reference is not empty. A remote-id match wins.
	FindPrincipal(ctx context.Context, siteID, prestaID int64, reference string) (*model.Product, error)
	FindPrincipalByPrestaID(ctx context.Context, siteID, prestaID int64) (*model.Product, error)
	FindAttribute(ctx context.Context, siteID, attributeID, parentID int64) (*model.Product, error)
	ListChildren(ctx context.Context, parentID int64) ([]model.Product, error)

	List(ctx context.Context, filter ProductFilter) ([]model.Product, int64, error)
	CountBySite(ctx context.Context, siteID int64) (int64, error)
	DeleteBySite(ctx context.Context, siteID int64) (int64, error)
}

// ==================== Filter ====================

type ProductFilter struct {
	SiteID int64
	// nil: both kinds
	IsAttribute *bool
	// only rows with quantity <= min_quantity
	LowStock bool
	Keyword  string
	Page     int
	PageSize int
}

// ==================== Implementation ====================

type productRepo struct {
	db *gorm.DB
}

// NewProductRepository creates the gorm-backed product repository.
func NewProductRepository(db *gorm.DB) ProductRepository {
	return &productRepo{db: db}
}

func (r *productRepo) Create(ctx context.Context, product *model.Product) error {
	return r.db.WithContext(ctx).Create(product).Error
}

func (r *productRepo) GetByID(ctx context.Context, id int64) (*model.Product, error) {
	var product model.Product
	if err := r.db.WithContext(ctx).First(&product, id).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *productRepo) UpdateFields(ctx context.Context, id int64, fields map[string]interface{}) error {
	return r.db.WithContext(ctx).
		Model(&model.Product{}).
		Where("id = ?", id).
		Updates(fields).Error
}

func (r *productRepo) Delete(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Delete(&model.Product{}, id).Error
}

func (r *productRepo) principals(ctx context.Context, siteID int64) *gorm.DB {
	return r.db.WithContext(ctx).
		Model(&model.Product{}).
		Where("site_id = ? AND is_attribute = ? AND attribute_id = 0", siteID, false)
}

func (r *productRepo) FindPrincipal(ctx context.Context, siteID, prestaID int64, reference string) (*model.Product, error) {
	query := r.principals(ctx, siteID)
	if reference != "" {
		query = query.
			Where("presta_id = ? OR reference = ?", prestaID, reference).
			Order(clause.OrderBy{Expression: clause.Expr{
				SQL:                "CASE WHEN presta_id = ? THEN 0 ELSE 1 END, id",
				Vars:               []interface{}{prestaID},
				WithoutParentheses: true,
			}})
	} else {
		query = query.Where("presta_id = ?", prestaID).Order("id")
	}
	return first(query)
}

func (r *productRepo) FindPrincipalByPrestaID(ctx context.Context, siteID, prestaID int64) (*model.Product, error) {
	return first(r.principals(ctx, siteID).Where("presta_id = ?", prestaID).Order("id"))
}

func (r *productRepo) FindAttribute(ctx context.Context, siteID, attributeID, parentID int64) (*model.Product, error) {
	query := r.db.WithContext(ctx).
		Model(&model.Product{}).
		Where("site_id = ? AND is_attribute = ? AND attribute_id = ? AND parent_id = ?", siteID, true, attributeID, parentID).
		Order("id")
	return first(query)
}

func (r *productRepo) ListChildren(ctx context.Context, parentID int64) ([]model.Product, error) {
	var products []model.Product
	err := r.db.WithContext(ctx).
		Where("is_attribute = ? AND parent_id = ?", true, parentID).
		Order("attribute_id ASC").
		Find(&products).Error
	return products, err
}

func (r *productRepo) List(ctx context.Context, filter ProductFilter) ([]model.Product, int64, error) {
	var products []model.Product
	var total int64

	query := r.db.WithContext(ctx).Model(&model.Product{})
	if filter.SiteID > 0 {
		query = query.Where("site_id = ?", filter.SiteID)
	}
	if filter.IsAttribute != nil {
		query = query.Where("is_attribute = ?", *filter.IsAttribute)
	}
	if filter.LowStock {
		query = query.Where("quantity <= min_quantity")
	}
	if filter.Keyword != "" {
		like := "%" + filter.Keyword + "%"
		query = query.Where("name LIKE ? OR reference LIKE ?", like, like)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 50
	}
	offset := (filter.Page - 1) * filter.PageSize

	err := query.
		Order("site_id ASC, presta_id ASC, attribute_id ASC").
		Limit(filter.PageSize).
		Offset(offset).
		Find(&products).Error
	return products, total, err
}

func (r *productRepo) CountBySite(ctx context.Context, siteID int64) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.Product{}).Where("site_id = ?", siteID).Count(&n).Error
	return n, err
}

func (r *productRepo) DeleteBySite(ctx context.Context, siteID int64) (int64, error) {
	res := r.db.WithContext(ctx).Where("site_id = ?", siteID).Delete(&model.Product{})
	return res.RowsAffected, res.Error
}

// first returns the first row of query, or nil when there is none.
func first(query *gorm.DB) (*model.Product, error) {
	var products []model.Product
	if err := query.Limit(1).Find(&products).Error; err != nil {
		return nil, err
	}
	if len(products) == 0 {
		return nil, nil
	}
	return &products[0], nil
}
