package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"retailpos/internal/model"
	"retailpos/internal/repository"
	"retailpos/pkg/logger"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// CreateProductRequest registers a new sellable product.
type CreateProductRequest struct {
	SKU           string  `json:"sku" binding:"required"`
	Name          string  `json:"name" binding:"required"`
	Unit          string  `json:"unit"`
	SalePrice     float64 `json:"sale_price" binding:"gte=0"`
	MinStockLevel int     `json:"min_stock_level" binding:"gte=0"`
	MaxStockLevel *int    `json:"max_stock_level"`
	IsTrackable   *bool   `json:"is_trackable"`
}

// UpdateProductRequest modifies product master data. Stock quantity is not
// editable here; it only moves through batches, sales, and returns.
type UpdateProductRequest struct {
	Name          *string  `json:"name"`
	Unit          *string  `json:"unit"`
	SalePrice     *float64 `json:"sale_price" binding:"omitempty,gte=0"`
	MinStockLevel *int     `json:"min_stock_level" binding:"omitempty,gte=0"`
	MaxStockLevel *int     `json:"max_stock_level"`
	IsActive      *bool    `json:"is_active"`
}

type ProductService interface {
	CreateProduct(ctx context.Context, actorID *uuid.UUID, req CreateProductRequest) (*model.Product, error)
	UpdateProduct(ctx context.Context, actorID *uuid.UUID, id uuid.UUID, req UpdateProductRequest) (*model.Product, error)
	DeleteProduct(ctx context.Context, actorID *uuid.UUID, id uuid.UUID) error
	GetProduct(ctx context.Context, id uuid.UUID) (*model.Product, error)
	ListProducts(ctx context.Context, page, limit int, search string) ([]model.Product, int64, error)
}

type productService struct {
	txManager   repository.TransactionManager
	productRepo repository.ProductRepository
	auditRepo   repository.AuditRepository
	log         *logger.Logger
}

func NewProductService(
	txManager repository.TransactionManager,
	productRepo repository.ProductRepository,
	auditRepo repository.AuditRepository,
	log *logger.Logger,
) ProductService {
	return &productService{
		txManager:   txManager,
		productRepo: productRepo,
		auditRepo:   auditRepo,
		log:         log,
	}
}

func validateStockLevels(minLevel int, maxLevel *int) error {
	if minLevel < 0 {
		return fmt.Errorf("%w: min stock level must not be negative", ErrValidation)
	}
	if maxLevel != nil && *maxLevel < minLevel {
		return fmt.Errorf("%w: max stock level must be >= min stock level", ErrValidation)
	}
	return nil
}

func (s *productService) CreateProduct(ctx context.Context, actorID *uuid.UUID, req CreateProductRequest) (*model.Product, error) {
	if err := validateStockLevels(req.MinStockLevel, req.MaxStockLevel); err != nil {
		return nil, err
	}

	trackable := true
	if req.IsTrackable != nil {
		trackable = *req.IsTrackable
	}

	product := &model.Product{
		SKU:           req.SKU,
		Name:          req.Name,
		Unit:          req.Unit,
		SalePrice:     decimal.NewFromFloat(req.SalePrice),
		MinStockLevel: req.MinStockLevel,
		MaxStockLevel: req.MaxStockLevel,
		IsActive:      true,
		IsTrackable:   trackable,
	}

	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if _, err := s.productRepo.FindBySKU(txCtx, req.SKU); err == nil {
			return fmt.Errorf("%w: sku %s already exists", ErrValidation, req.SKU)
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		if err := s.productRepo.Create(txCtx, product); err != nil {
			return fmt.Errorf("failed to create product: %w", err)
		}
		return s.auditProduct(txCtx, actorID, model.ActionCreateProduct, product)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().Str("sku", product.SKU).Msg("product created")
	return product, nil
}

func (s *productService) UpdateProduct(ctx context.Context, actorID *uuid.UUID, id uuid.UUID, req UpdateProductRequest) (*model.Product, error) {
	var product *model.Product
	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		var err error
		product, err = s.productRepo.FindByIDForUpdate(txCtx, id)
		if err != nil {
			return fmt.Errorf("%w: product not found", ErrValidation)
		}

		if req.Name != nil {
			product.Name = *req.Name
		}
		if req.Unit != nil {
			product.Unit = *req.Unit
		}
		if req.SalePrice != nil {
			product.SalePrice = decimal.NewFromFloat(*req.SalePrice)
		}
		if req.MinStockLevel != nil {
			product.MinStockLevel = *req.MinStockLevel
		}
		if req.MaxStockLevel != nil {
			product.MaxStockLevel = req.MaxStockLevel
		}
		if req.IsActive != nil {
			product.IsActive = *req.IsActive
		}
		if err := validateStockLevels(product.MinStockLevel, product.MaxStockLevel); err != nil {
			return err
		}

		if err := s.productRepo.Update(txCtx, product); err != nil {
			return fmt.Errorf("failed to update product: %w", err)
		}
		return s.auditProduct(txCtx, actorID, model.ActionUpdateProduct, product)
	})
	if err != nil {
		return nil, err
	}

	return product, nil
}

func (s *productService) DeleteProduct(ctx context.Context, actorID *uuid.UUID, id uuid.UUID) error {
	return s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		product, err := s.productRepo.FindByID(txCtx, id)
		if err != nil {
			return fmt.Errorf("%w: product not found", ErrValidation)
		}
		if err := s.productRepo.Delete(txCtx, id); err != nil {
			return fmt.Errorf("failed to delete product: %w", err)
		}
		return s.auditProduct(txCtx, actorID, model.ActionDeleteProduct, product)
	})
}

func (s *productService) GetProduct(ctx context.Context, id uuid.UUID) (*model.Product, error) {
	return s.productRepo.FindByID(ctx, id)
}

func (s *productService) ListProducts(ctx context.Context, page, limit int, search string) ([]model.Product, int64, error) {
	return s.productRepo.List(ctx, page, limit, search)
}

func (s *productService) auditProduct(ctx context.Context, actorID *uuid.UUID, action string, product *model.Product) error {
	details, _ := json.Marshal(map[string]interface{}{
		"sku":  product.SKU,
		"name": product.Name,
	})
	return s.auditRepo.Log(ctx, &model.AuditLog{
		UserID:     actorID,
		Action:     action,
		EntityID:   product.ID.String(),
		EntityName: product.Name,
		Details:    string(details),
	})
}
