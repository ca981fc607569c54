package handlers

import (
	"context"
	"fmt"

	"carmarket/internal/clock"
	"carmarket/internal/config"
	applog "carmarket/internal/log"
	"carmarket/internal/repos"
	"carmarket/internal/repos/dynamo"
	"carmarket/internal/services"

	"github.com/jmoiron/sqlx"
)

type Deps struct {
	Auth      *services.AuthService
	Catalog   *services.CatalogService
	Bookings  *services.BookingService
	Enquiries *services.EnquiryService

	AuthHandler    *AuthHandler
	CarHandler     *CarHandler
	BookingHandler *BookingHandler
	EnquiryHandler *EnquiryHandler
	AdminHandler   *AdminHandler
}

// NewDeps wires services and handlers. Identity always lives in the SQLite
// db; cars, bookings and enquiries go to the store cfg.Store names.
func NewDeps(ctx context.Context, db *sqlx.DB, cfg config.Config, clk clock.Clock) (*Deps, error) {
	var (
		cars      services.CarStore
		bookings  services.BookingStore
		enquiries services.EnquiryStore
	)
	switch cfg.Store {
	case config.StoreDynamoDB:
		api, err := dynamo.NewClient(ctx, dynamo.Options{Region: cfg.AWSRegion, Endpoint: cfg.DynamoEndpoint})
		if err != nil {
			return nil, fmt.Errorf("dynamodb client: %w", err)
		}
		if cfg.DynamoEndpoint != "" {
			tables := dynamo.Tables{Cars: cfg.CarsTable, Bookings: cfg.BookingsTable, Enquiries: cfg.EnquiriesTable}
			if err := dynamo.EnsureTables(ctx, api, tables); err != nil {
				return nil, err
			}
		}
		cars = dynamo.NewCarStore(api, cfg.CarsTable)
		bookings = dynamo.NewBookingStore(api, cfg.BookingsTable, cfg.CarsTable)
		enquiries = dynamo.NewEnquiryStore(api, cfg.EnquiriesTable)
	default:
		cars = repos.NewCarRepo(db)
		bookings = repos.NewBookingRepo(db)
		enquiries = repos.NewEnquiryRepo(db)
	}
	applog.Info(ctx, "store.selected", map[string]any{"store": cfg.Store})

	authSvc := &services.AuthService{Users: repos.NewUserRepo(db)}
	catalogSvc := services.NewCatalogService(cars, clk)
	bookingSvc := services.NewBookingService(bookings, cars, clk)
	enquirySvc := services.NewEnquiryService(enquiries, cars, clk)

	return &Deps{
		Auth:      authSvc,
		Catalog:   catalogSvc,
		Bookings:  bookingSvc,
		Enquiries: enquirySvc,

		AuthHandler:    &AuthHandler{Auth: authSvc},
		CarHandler:     &CarHandler{Catalog: catalogSvc},
		BookingHandler: &BookingHandler{Bookings: bookingSvc},
		EnquiryHandler: &EnquiryHandler{Enquiries: enquirySvc},
		AdminHandler:   &AdminHandler{Bookings: bookingSvc, Enquiries: enquirySvc, Catalog: catalogSvc},
	}, nil
}
