package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
)

// Seeds demo tenants with products, coupons and delivery areas so the
// payment flow can be exercised end to end against a local stack.
func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		log.Fatalf("Failed to open DB: %v", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		log.Fatalf("Failed to ping DB: %v", err)
	}

	storeID := seedTenant(ctx, pool, "demo-store", "Demo Store", "ecommerce")
	groceryID := seedTenant(ctx, pool, "fresh-mart", "Fresh Mart", "grocery")

	seedIntegration(ctx, pool, storeID, "rzp_test_demo", "demo_secret_store")
	seedIntegration(ctx, pool, groceryID, "rzp_test_fresh", "demo_secret_fresh")

	seedProducts(ctx, pool, storeID, []product{
		{"Cotton Kurta", 89900, 40},
		{"Leather Sandals", 149900, 25},
		{"Brass Diya Set", 59900, 60},
		{"Handloom Saree", 299900, 12},
	})
	seedProducts(ctx, pool, groceryID, []product{
		{"Basmati Rice 5kg", 64900, 120},
		{"Toor Dal 1kg", 18900, 200},
		{"Cold Pressed Groundnut Oil 1L", 32900, 80},
		{"Jaggery Block 500g", 8900, 150},
	})

	seedCoupons(ctx, pool, storeID, []string{"WELCOME10", "FESTIVE20"})
	seedCoupons(ctx, pool, groceryID, []string{"FIRSTORDER"})

	seedDeliveryAreas(ctx, pool, groceryID)

	log.Println("Seeding completed successfully!")
}

type product struct {
	Name  string
	Price int64
	Stock int32
}

func seedTenant(ctx context.Context, pool *pgxpool.Pool, slug, name, businessType string) string {
	var id string
	err := pool.QueryRow(ctx, `
		INSERT INTO tenants (slug, name, business_type, status, plan, trial_ends_at)
		VALUES ($1, $2, $3, 'active', 'trial', now() + interval '30 days')
		ON CONFLICT (slug) DO UPDATE SET name = EXCLUDED.name
		RETURNING id;
	`, slug, name, businessType).Scan(&id)
	if err != nil {
		log.Fatalf("Failed to seed tenant %s: %v", slug, err)
	}
	log.Printf("Tenant %s => %s", slug, id)
	return id
}

func seedIntegration(ctx context.Context, pool *pgxpool.Pool, tenantID, keyID, keySecret string) {
	_, err := pool.Exec(ctx, `
		INSERT INTO tenant_integrations (tenant_id, razorpay_key_id, razorpay_key_secret)
		VALUES ($1, $2, $3)
		ON CONFLICT (tenant_id) DO UPDATE SET razorpay_key_id = EXCLUDED.razorpay_key_id, razorpay_key_secret = EXCLUDED.razorpay_key_secret;
	`, tenantID, keyID, keySecret)
	if err != nil {
		log.Fatalf("Failed to seed integration for %s: %v", tenantID, err)
	}
}

func seedProducts(ctx context.Context, pool *pgxpool.Pool, tenantID string, items []product) {
	log.Println("Seeding Products...")
	for _, p := range items {
		var exists bool
		err := pool.QueryRow(ctx, `
			SELECT EXISTS (SELECT 1 FROM products WHERE tenant_id = $1 AND name = $2);
		`, tenantID, p.Name).Scan(&exists)
		if err != nil {
			log.Printf("Failed to check product %s: %v", p.Name, err)
			continue
		}
		if exists {
			continue
		}
		_, err = pool.Exec(ctx, `
			INSERT INTO products (tenant_id, name, price, stock) VALUES ($1, $2, $3, $4);
		`, tenantID, p.Name, p.Price, p.Stock)
		if err != nil {
			log.Printf("Failed to seed product %s: %v", p.Name, err)
		}
	}
}

func seedCoupons(ctx context.Context, pool *pgxpool.Pool, tenantID string, codes []string) {
	log.Println("Seeding Coupons...")
	for _, code := range codes {
		_, err := pool.Exec(ctx, `
			INSERT INTO coupons (tenant_id, code, active) VALUES ($1, $2, TRUE)
			ON CONFLICT (tenant_id, code) DO NOTHING;
		`, tenantID, code)
		if err != nil {
			log.Printf("Failed to seed coupon %s: %v", code, err)
		}
	}
}

func seedDeliveryAreas(ctx context.Context, pool *pgxpool.Pool, tenantID string) {
	log.Println("Seeding Delivery Areas...")
	areas := []struct {
		Name     string
		Pincodes []string
	}{
		{"Indiranagar", []string{"560038", "560008"}},
		{"Koramangala", []string{"560034", "560095"}},
		{"HSR Layout", []string{"560102"}},
	}
	for _, a := range areas {
		var exists bool
		err := pool.QueryRow(ctx, `
			SELECT EXISTS (SELECT 1 FROM delivery_areas WHERE tenant_id = $1 AND name = $2);
		`, tenantID, a.Name).Scan(&exists)
		if err != nil {
			log.Printf("Failed to check delivery area %s: %v", a.Name, err)
			continue
		}
		if exists {
			continue
		}
		_, err = pool.Exec(ctx, `
			INSERT INTO delivery_areas (tenant_id, name, pincodes, active) VALUES ($1, $2, $3, TRUE);
		`, tenantID, a.Name, a.Pincodes)
		if err != nil {
			log.Printf("Failed to seed delivery area %s: %v", a.Name, err)
		}
	}
}
