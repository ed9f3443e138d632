package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go-pos-ws/internal/model"
	"go-pos-ws/internal/repository"
	apperrors "go-pos-ws/pkg/errors"
	"go-pos-ws/pkg/logger"
	"go-pos-ws/pkg/validator"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Actor identifies who made a change.
type Actor struct {
	ID   string
	Name string
}

type CatalogService interface {
	ProductCatalog
	ListProducts(ctx context.Context, includeInactive bool) ([]model.Product, error)
	CreateProduct(ctx context.Context, req *model.Product, actor Actor) error
	UpdateProduct(ctx context.Context, id uuid.UUID, req *model.Product, actor Actor) (*model.Product, error)
}

type catalogService struct {
	productRepo repository.ProductRepository
	db          *gorm.DB
	publisher   Publisher
	log         *logger.Logger
}

func NewCatalogService(pRepo repository.ProductRepository, db *gorm.DB, publisher Publisher, log *logger.Logger) CatalogService {
	if log == nil {
		log = logger.Nop()
	}
	return &catalogService{
		productRepo: pRepo,
		db:          db,
		publisher:   publisher,
		log:         log,
	}
}

// GetAllProducts lists the sellable products.
func (s *catalogService) GetAllProducts(ctx context.Context) ([]model.Product, error) {
	products, err := s.productRepo.FindActive(ctx)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeDependency, err, "could not load products")
	}
	return products, nil
}

// GetProduct returns an active product. Inactive products are reported as
// not found so they cannot be sold.
func (s *catalogService) GetProduct(ctx context.Context, id uuid.UUID) (*model.Product, error) {
	product, err := s.productRepo.FindByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) || (err == nil && !product.IsActive) {
		return nil, apperrors.New(apperrors.CodeNotFound, "product not found").
			WithDetails(map[string]string{"product_id": id.String()})
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeDependency, err, "could not load product")
	}
	return product, nil
}

func (s *catalogService) ListProducts(ctx context.Context, includeInactive bool) ([]model.Product, error) {
	if !includeInactive {
		return s.GetAllProducts(ctx)
	}
	products, err := s.productRepo.FindAll(ctx)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeDependency, err, "could not load products")
	}
	return products, nil
}

func (s *catalogService) CreateProduct(ctx context.Context, req *model.Product, actor Actor) error {
	// 1. Basic struct validation
	if errs := validator.ValidateStruct(req); len(errs) > 0 {
		return apperrors.New(apperrors.CodeValidation, fmt.Sprintf("field '%s' failed on tag '%s'", errs[0].FailedField, errs[0].Tag)).
			WithDetails(errs)
	}

	// 2. SKU must be unique
	existing, err := s.productRepo.FindBySKU(ctx, req.SKU)
	if err == nil && existing.ID != uuid.Nil {
		return apperrors.New(apperrors.CodeStateConflict, "SKU already exists")
	}
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return apperrors.Wrap(apperrors.CodeDependency, err, "could not save")
	}

	// 3. Audit fields
	req.CreatedBy = actor.ID
	req.UpdatedBy = actor.ID

	// 4. Save
	if err := s.productRepo.Create(ctx, req); err != nil {
		return apperrors.Wrap(apperrors.CodeDependency, err, "could not save")
	}

	// 5. Tell connected tills
	product := *req
	go s.broadcastStock("product_created", &product, 0, actor)
	return nil
}

func (s *catalogService) UpdateProduct(ctx context.Context, id uuid.UUID, req *model.Product, actor Actor) (*model.Product, error) {
	if errs := validator.ValidateStruct(req); len(errs) > 0 {
		return nil, apperrors.New(apperrors.CodeValidation, fmt.Sprintf("field '%s' failed on tag '%s'", errs[0].FailedField, errs[0].Tag)).
			WithDetails(errs)
	}

	var updated model.Product
	var oldStock int
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := repository.NewProductRepo(tx)

		// 1. Lock the row
		var existing model.Product
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&existing, "id = ?", id).Error; err != nil {
			return err
		}
		oldStock = existing.Stock

		// 2. Apply the editable fields
		existing.Name = req.Name
		existing.SKU = req.SKU
		existing.Stock = req.Stock
		existing.Unit = req.Unit
		existing.Price = req.Price
		existing.IsActive = req.IsActive
		existing.LowStockThreshold = req.LowStockThreshold
		existing.UpdatedBy = actor.ID

		// 3. Save inside the transaction
		if err := repo.Update(ctx, &existing); err != nil {
			return err
		}
		updated = existing
		return nil
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.New(apperrors.CodeNotFound, "product not found")
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeDependency, err, "could not save")
	}

	// 4. Broadcast after commit
	product := updated
	go s.broadcastStock("product_updated", &product, oldStock, actor)
	return &updated, nil
}

func (s *catalogService) broadcastStock(action string, product *model.Product, oldStock int, actor Actor) {
	if s.publisher == nil {
		return
	}
	payload := map[string]interface{}{
		"type":   EventStockUpdate,
		"action": action,
		"product": map[string]interface{}{
			"id":        product.ID,
			"sku":       product.SKU,
			"name":      product.Name,
			"old_stock": oldStock,
			"new_stock": product.Stock,
			"price":     product.Price,
			"is_active": product.IsActive,
			"low_stock": product.IsLowStock(),
		},
		"user": map[string]interface{}{
			"id":   actor.ID,
			"name": actor.Name,
		},
		"message": fmt.Sprintf("%s %s product '%s'", actor.Name, actionVerb(action), product.Name),
	}
	msg, err := json.Marshal(payload)
	if err != nil {
		s.log.Error(context.Background(), "encode stock update", err)
		return
	}
	if err := s.publisher.Publish(context.Background(), TopicCatalog, msg); err != nil {
		s.log.Warn(context.Background(), "stock update not published")
	}
}

func actionVerb(action string) string {
	if action == "product_created" {
		return "created"
	}
	return "updated"
}
