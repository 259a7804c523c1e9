package service

import (
	"context"
	"strings"

	"github.com/spec-kit/marketplace-accounts/internal/domain"
	"github.com/spec-kit/marketplace-accounts/internal/repository"
	apperrors "github.com/spec-kit/marketplace-accounts/pkg/util"
)

// RegionGroup lists the departments of one region.
type RegionGroup struct {
	Region      string              `json:"region"`
	Departments []domain.Department `json:"departments"`
}

// DepartmentCatalog is the department list plus the same rows grouped by region.
type DepartmentCatalog struct {
	Departments []domain.Department `json:"departments"`
	Regions     []RegionGroup       `json:"regions"`
}

// ReferenceService serves the read-only lookup data the signup wizard needs.
type ReferenceService struct {
	reference repository.ReferenceRepository
}

// NewReferenceService builds the service.
func NewReferenceService(reference repository.ReferenceRepository) *ReferenceService {
	return &ReferenceService{reference: reference}
}

// Sectors returns every sector with its categories nested.
func (s *ReferenceService) Sectors(ctx context.Context) ([]domain.Sector, error) {
	sectors, err := s.reference.ListSectors(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	categories, err := s.reference.ListCategories(ctx, nil)
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	bySector := make(map[string][]domain.Category, len(sectors))
	for _, c := range categories {
		bySector[c.SectorKey] = append(bySector[c.SectorKey], c)
	}
	for i := range sectors {
		sectors[i].Categories = bySector[sectors[i].Key]
		if sectors[i].Categories == nil {
			sectors[i].Categories = []domain.Category{}
		}
	}
	return sectors, nil
}

// Categories returns the categories of one sector.
func (s *ReferenceService) Categories(ctx context.Context, sectorKey string) ([]domain.Category, error) {
	sectorKey = strings.TrimSpace(sectorKey)
	categories, err := s.reference.ListCategories(ctx, &sectorKey)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if categories == nil {
		categories = []domain.Category{}
	}
	return categories, nil
}

// Departments returns the department catalogue; regions keep first-seen order.
func (s *ReferenceService) Departments(ctx context.Context) (*DepartmentCatalog, error) {
	departments, err := s.reference.ListDepartments(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if departments == nil {
		departments = []domain.Department{}
	}

	catalog := &DepartmentCatalog{Departments: departments, Regions: []RegionGroup{}}
	index := map[string]int{}
	for _, d := range departments {
		region := d.Region
		if region == "" {
			region = "Autre"
		}
		i, ok := index[region]
		if !ok {
			i = len(catalog.Regions)
			index[region] = i
			catalog.Regions = append(catalog.Regions, RegionGroup{Region: region})
		}
		catalog.Regions[i].Departments = append(catalog.Regions[i].Departments, d)
	}
	return catalog, nil
}
