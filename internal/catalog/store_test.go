package catalog

import (
	"context"
	"errors"
	"testing"
	"time"

	pgxmock "github.com/pashagolub/pgxmock/v3"
)

func TestCreateProduct(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	store := NewStoreWithDB(mock)
	now := time.Now().UTC()

	mock.ExpectQuery("INSERT INTO products").
		WithArgs(pgxmock.AnyArg(), "shop-1", "Leather Bag", "Hand stitched", 79.99, 30.0, 12, true).
		WillReturnRows(pgxmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))

	p, err := store.CreateProduct(context.Background(), "shop-1", &CreateProductRequest{
		Name:        "Leather Bag",
		Description: "Hand stitched",
		Price:       79.99,
		Cost:        30.0,
		Stock:       12,
	})
	if err != nil {
		t.Fatalf("create product failed: %v", err)
	}
	if p.ID == "" || !p.Active {
		t.Errorf("unexpected product: %+v", p)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCreateProductValidation(t *testing.T) {
	store := NewStoreWithDB(nil)

	cases := []struct {
		name string
		req  CreateProductRequest
	}{
		{"blank name", CreateProductRequest{Name: " ", Price: 1}},
		{"negative price", CreateProductRequest{Name: "x", Price: -1}},
		{"negative stock", CreateProductRequest{Name: "x", Price: 1, Stock: -2}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := store.CreateProduct(context.Background(), "shop-1", &tc.req); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestDecrementStock(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	store := NewStoreWithDB(mock)

	t.Run("sufficient stock", func(t *testing.T) {
		mock.ExpectExec("UPDATE products").
			WithArgs("prod-1", "shop-1", 2).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		if err := store.DecrementStock(context.Background(), "shop-1", "prod-1", 2); err != nil {
			t.Fatalf("decrement failed: %v", err)
		}
	})

	t.Run("insufficient stock loses the race", func(t *testing.T) {
		mock.ExpectExec("UPDATE products").
			WithArgs("prod-1", "shop-1", 50).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		err := store.DecrementStock(context.Background(), "shop-1", "prod-1", 50)
		if !errors.Is(err, ErrInsufficientStock) {
			t.Fatalf("expected ErrInsufficientStock, got %v", err)
		}
	})

	t.Run("rejects non-positive quantity", func(t *testing.T) {
		if err := store.DecrementStock(context.Background(), "shop-1", "prod-1", 0); err == nil {
			t.Fatal("expected error for zero quantity")
		}
	})

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestActiveProducts(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	store := NewStoreWithDB(mock)
	now := time.Now().UTC()

	rows := pgxmock.NewRows([]string{
		"id", "shop_id", "name", "description", "price", "cost", "stock", "active", "created_at", "updated_at",
	}).
		AddRow("p1", "shop-1", "Widget", "", 10.0, 4.0, 5, true, now, now).
		AddRow("p2", "shop-1", "Gadget", "", 25.0, 11.0, 0, true, now, now)

	mock.ExpectQuery("SELECT id, shop_id, name").WithArgs("shop-1").WillReturnRows(rows)

	products, err := store.ActiveProducts(context.Background(), "shop-1")
	if err != nil {
		t.Fatalf("active products failed: %v", err)
	}
	if len(products) != 2 || products[0].Name != "Widget" {
		t.Fatalf("unexpected products: %+v", products)
	}
}

func TestUpdateServiceNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	store := NewStoreWithDB(mock)
	mock.ExpectExec("UPDATE services").
		WithArgs("svc-missing", "shop-1", nil, nil, nil, nil, nil).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err = store.UpdateService(context.Background(), "shop-1", "svc-missing", &UpdateServiceRequest{})
	if !errors.Is(err, ErrServiceNotFound) {
		t.Fatalf("expected ErrServiceNotFound, got %v", err)
	}
}
