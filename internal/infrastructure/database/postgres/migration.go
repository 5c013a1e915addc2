// internal/infrastructure/database/postgres/migration.go
package postgres

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/your-org/b2b-storefront/internal/domain/cart"
	"github.com/your-org/b2b-storefront/internal/domain/order"
	"github.com/your-org/b2b-storefront/internal/domain/product"
	"gorm.io/gorm"
)

// Migration handles database migrations
type Migration struct {
	db  *gorm.DB
	log *logrus.Logger
}

// NewMigration creates a new migration instance
func NewMigration(db *gorm.DB, log *logrus.Logger) *Migration {
	return &Migration{
		db:  db,
		log: log,
	}
}

// RunAutoMigrations runs GORM auto-migrations for all models
func (m *Migration) RunAutoMigrations() error {
	m.log.Info("🔄 Running database auto-migrations...")

	// Models in dependency order
	models := []interface{}{
		&product.Product{},
		&product.CustomerPrice{},
		&cart.Cart{},
		&order.Order{},
	}

	for _, model := range models {
		m.log.Debugf("Migrating model: %T", model)
		if err := m.db.AutoMigrate(model); err != nil {
			return fmt.Errorf("failed to migrate model %T: %w", model, err)
		}
	}

	m.log.Info("✅ Database auto-migrations completed successfully")
	return nil
}

// CreateIndexes creates additional indexes for better performance
func (m *Migration) CreateIndexes() error {
	m.log.Info("🔄 Creating additional database indexes...")

	indexes := []string{
		// Product indexes
		"CREATE INDEX IF NOT EXISTS idx_products_category_active ON products(category, is_active)",
		"CREATE INDEX IF NOT EXISTS idx_products_brand_active ON products(brand, is_active)",
		"CREATE INDEX IF NOT EXISTS idx_products_created_at ON products(created_at DESC)",

		// Customer price indexes
		"CREATE INDEX IF NOT EXISTS idx_customer_prices_active ON customer_prices(customer_id, sku, is_active)",
		"CREATE INDEX IF NOT EXISTS idx_customer_prices_updated_at ON customer_prices(updated_at DESC)",

		// Cart indexes
		"CREATE INDEX IF NOT EXISTS idx_carts_updated_at ON carts(updated_at DESC)",

		// Order indexes
		"CREATE INDEX IF NOT EXISTS idx_orders_customer_status ON orders(customer_id, status)",
		"CREATE INDEX IF NOT EXISTS idx_orders_session ON orders(session_id)",
		"CREATE INDEX IF NOT EXISTS idx_orders_status_created ON orders(status, created_at DESC)",
		"CREATE INDEX IF NOT EXISTS idx_orders_created_at ON orders(created_at DESC)",
	}

	successCount := 0
	failCount := 0

	for _, indexSQL := range indexes {
		if err := m.db.Exec(indexSQL).Error; err != nil {
			m.log.Warnf("⚠️ Failed to create index: %v", err)
			failCount++
		} else {
			successCount++
		}
	}

	m.log.Infof("✅ Created %d indexes successfully (%d failed)", successCount, failCount)
	return nil
}

// SeedInitialData inserts development fixtures: a small catalog and a couple
// of customer price overrides to exercise per-customer pricing
func (m *Migration) SeedInitialData() error {
	m.log.Info("🌱 Seeding initial data...")

	if err := m.seedProducts(); err != nil {
		return fmt.Errorf("failed to seed products: %w", err)
	}
	if err := m.seedCustomerPrices(); err != nil {
		return fmt.Errorf("failed to seed customer prices: %w", err)
	}

	m.log.Info("✅ Initial data seeded successfully")
	return nil
}

func (m *Migration) seedProducts() error {
	m.log.Info("🛍️ Seeding catalog products...")

	products := []product.Product{
		{
			SKU:         "CHAIR-ERGO-01",
			Name:        "Ergonomic Office Chair",
			Brand:       "SteelForm",
			Category:    "Office Furniture",
			Description: "Adjustable lumbar support, breathable mesh back, suitable for long shifts.",
			BasePrice:   decimal.RequireFromString("249.00"),
			IsActive:    true,
		},
		{
			SKU:         "DESK-STAND-02",
			Name:        "Electric Standing Desk",
			Brand:       "SteelForm",
			Category:    "Office Furniture",
			Description: "Dual-motor sit-stand desk with memory presets, 140x70cm top.",
			BasePrice:   decimal.RequireFromString("499.00"),
			IsActive:    true,
		},
		{
			SKU:         "MON-27-4K",
			Name:        "27-inch 4K Monitor",
			Brand:       "ViewCore",
			Category:    "Electronics",
			Description: "IPS panel, USB-C with 90W power delivery, height-adjustable stand.",
			BasePrice:   decimal.RequireFromString("389.00"),
			IsActive:    true,
		},
		{
			SKU:         "DOCK-USB-C",
			Name:        "USB-C Docking Station",
			Brand:       "ViewCore",
			Category:    "Electronics",
			Description: "Dual display output, gigabit ethernet, six USB ports.",
			BasePrice:   decimal.RequireFromString("129.00"),
			IsActive:    true,
		},
		{
			SKU:         "PAPER-A4-BOX",
			Name:        "A4 Copy Paper, 5-Ream Box",
			Brand:       "OfficeBasics",
			Category:    "Supplies",
			Description: "80gsm multipurpose paper, 2500 sheets per box.",
			BasePrice:   decimal.RequireFromString("27.50"),
			IsActive:    true,
		},
	}

	for _, p := range products {
		var existing product.Product
		result := m.db.Where("sku = ?", p.SKU).First(&existing)
		if result.Error != nil {
			if err := m.db.Create(&p).Error; err != nil {
				m.log.Warnf("⚠️ Failed to create product %s: %v", p.SKU, err)
			} else {
				m.log.Infof("✅ Created product: %s", p.Name)
			}
		} else {
			m.log.Debugf("⏭️ Product already exists: %s", p.Name)
		}
	}

	return nil
}

func (m *Migration) seedCustomerPrices() error {
	m.log.Info("💰 Seeding customer price overrides...")

	var chair, desk product.Product
	if err := m.db.Where("sku = ?", "CHAIR-ERGO-01").First(&chair).Error; err != nil {
		m.log.Warn("⚠️ No seed products found, skipping customer prices")
		return nil
	}
	if err := m.db.Where("sku = ?", "DESK-STAND-02").First(&desk).Error; err != nil {
		return nil
	}

	until := time.Now().UTC().AddDate(1, 0, 0)
	overrides := []product.CustomerPrice{
		{
			CustomerID: 1,
			ProductID:  chair.ID,
			SKU:        chair.SKU,
			Price:      decimal.RequireFromString("199.00"),
			IsActive:   true,
			ValidUntil: &until,
		},
		{
			CustomerID: 1,
			ProductID:  desk.ID,
			SKU:        desk.SKU,
			Price:      decimal.RequireFromString("449.00"),
			IsActive:   true,
		},
	}

	for _, o := range overrides {
		var existing product.CustomerPrice
		result := m.db.Where("customer_id = ? AND product_id = ?", o.CustomerID, o.ProductID).First(&existing)
		if result.Error != nil {
			if err := m.db.Create(&o).Error; err != nil {
				m.log.Warnf("⚠️ Failed to create customer price for %s: %v", o.SKU, err)
			} else {
				m.log.Infof("✅ Created customer price: customer %d, %s", o.CustomerID, o.SKU)
			}
		} else {
			m.log.Debugf("⏭️ Customer price already exists for %s", o.SKU)
		}
	}

	return nil
}

// DropAllTables drops all tables (use with extreme caution)
func (m *Migration) DropAllTables() error {
	m.log.Warn("⚠️ WARNING: Dropping all database tables...")

	// Reverse dependency order
	tables := []string{
		"orders",
		"carts",
		"customer_prices",
		"products",
	}

	for _, table := range tables {
		if err := m.db.Exec(fmt.Sprintf("DROP TABLE IF EXISTS %s CASCADE", table)).Error; err != nil {
			m.log.Warnf("⚠️ Failed to drop table %s: %v", table, err)
		} else {
			m.log.Infof("🗑️ Dropped table: %s", table)
		}
	}

	m.log.Info("✅ All tables dropped successfully")
	return nil
}

// GetTableInfo logs row counts for every public table
func (m *Migration) GetTableInfo() error {
	var tables []string

	if err := m.db.Raw("SELECT tablename FROM pg_tables WHERE schemaname = 'public' ORDER BY tablename").Scan(&tables).Error; err != nil {
		return err
	}

	m.log.Info("📊 Database Tables Information:")

	totalRecords := int64(0)
	for _, table := range tables {
		var count int64
		m.db.Table(table).Count(&count)
		totalRecords += count
		m.log.Infof("  %-25s | %d records", table, count)
	}

	m.log.Infof("📈 Total records across %d tables: %d", len(tables), totalRecords)
	return nil
}
