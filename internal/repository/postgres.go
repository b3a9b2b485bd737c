// Package repository содержит реализацию доступа к данным в PostgreSQL.
package repository

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/sethvargo/go-retry"

	"github.com/mmeshcher/importadora-system/internal/model"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrUserExists возвращается при попытке создать пользователя с уже существующим логином.
var (
	ErrUserExists = errors.New("user already exists")
	// ErrUserNotFound возвращается, если пользователь не найден.
	ErrUserNotFound = errors.New("user not found")
	// ErrProductNotFound возвращается, если товар не найден.
	ErrProductNotFound = errors.New("product not found")
	// ErrOrderNotFound возвращается, если заказ не найден.
	ErrOrderNotFound = errors.New("order not found")
	// ErrLineItemNotFound возвращается, если позиция заказа не найдена.
	ErrLineItemNotFound = errors.New("line item not found")
	// ErrNotificationNotFound возвращается, если уведомление не найдено.
	ErrNotificationNotFound = errors.New("notification not found")
	// ErrSettingsNotFound возвращается, если единственная запись настроек
	// отсутствует. Запись создаётся миграцией; её отсутствие — признак
	// повреждённой схемы, а не повод молча подставить нули.
	ErrSettingsNotFound = errors.New("settings row not found")
)

// PostgresRepository предоставляет доступ к хранилищу данных в PostgreSQL.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository создаёт новый репозиторий и инициализирует схему БД через миграции.
func NewPostgresRepository(dsn string) (*PostgresRepository, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	r := &PostgresRepository{pool: pool}

	if err := r.runMigrations(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return r, nil
}

func (r *PostgresRepository) runMigrations(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(r.pool)
	defer db.Close()

	goose.SetBaseFS(migrationsFS)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}

// withRetry повторяет операцию при конфликте сериализации, дедлоке
// или обрыве соединения. Ошибки контекста и бизнес-ошибки не ретраятся.
func (r *PostgresRepository) withRetry(ctx context.Context, fn func() error) error {
	backoff := retry.WithMaxRetries(3, retry.NewFibonacci(500*time.Millisecond))

	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := fn()
		if err == nil {
			return nil
		}

		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}

		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			if pgErr.Code == pgerrcode.SerializationFailure || pgErr.Code == pgerrcode.DeadlockDetected {
				return retry.RetryableError(err)
			}
			return err
		}

		if isConnectionError(err) {
			return retry.RetryableError(err)
		}

		return err
	})
}

func isConnectionError(err error) bool {
	return strings.Contains(err.Error(), "connection refused") ||
		strings.Contains(err.Error(), "broken pipe") ||
		strings.Contains(err.Error(), "connection reset by peer")
}

// Close закрывает пул соединений с БД.
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

// CreateUser создаёт нового пользователя.
func (r *PostgresRepository) CreateUser(ctx context.Context, login string, passwordHash []byte, email string) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO users (login, password_hash, email) VALUES ($1, $2, $3) RETURNING id`,
		login, passwordHash, email,
	).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return 0, fmt.Errorf("%w: %s", ErrUserExists, login)
		}
		return 0, fmt.Errorf("create user: %w", err)
	}
	return id, nil
}

// GetUserByLogin возвращает пользователя по логину.
func (r *PostgresRepository) GetUserByLogin(ctx context.Context, login string) (*model.User, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, login, password_hash, email, phone, address, is_admin, created_at
		 FROM users WHERE login = $1`,
		login,
	)

	var u model.User
	err := row.Scan(&u.ID, &u.Login, &u.PasswordHash, &u.Email, &u.Phone, &u.Address, &u.IsAdmin, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	return &u, nil
}

// GetUserByID возвращает пользователя по идентификатору.
func (r *PostgresRepository) GetUserByID(ctx context.Context, id int64) (*model.User, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, login, password_hash, email, phone, address, is_admin, created_at
		 FROM users WHERE id = $1`,
		id,
	)

	var u model.User
	err := row.Scan(&u.ID, &u.Login, &u.PasswordHash, &u.Email, &u.Phone, &u.Address, &u.IsAdmin, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	return &u, nil
}

// UpdateUserProfile обновляет контактные данные пользователя.
func (r *PostgresRepository) UpdateUserProfile(ctx context.Context, id int64, email, phone, address string) error {
	cmdTag, err := r.pool.Exec(ctx,
		`UPDATE users SET email = $2, phone = $3, address = $4 WHERE id = $1`,
		id, email, phone, address,
	)
	if err != nil {
		return fmt.Errorf("update user profile: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// CreateProduct создаёт товар каталога.
func (r *PostgresRepository) CreateProduct(ctx context.Context, p model.Product) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO products (name, description, brand, price_usd, weight_kg, available, image_url, fixed_price_clp)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING id`,
		p.Name, p.Description, p.Brand, p.PriceUSD, p.WeightKG, p.Available, p.ImageURL, p.FixedPriceCLP,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("create product: %w", err)
	}
	return id, nil
}

// UpdateProduct обновляет товар каталога.
func (r *PostgresRepository) UpdateProduct(ctx context.Context, p model.Product) error {
	cmdTag, err := r.pool.Exec(ctx,
		`UPDATE products
		 SET name = $2, description = $3, brand = $4, price_usd = $5,
		     weight_kg = $6, available = $7, image_url = $8, fixed_price_clp = $9
		 WHERE id = $1`,
		p.ID, p.Name, p.Description, p.Brand, p.PriceUSD, p.WeightKG, p.Available, p.ImageURL, p.FixedPriceCLP,
	)
	if err != nil {
		return fmt.Errorf("update product: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrProductNotFound
	}
	return nil
}

// GetProduct возвращает товар по идентификатору.
func (r *PostgresRepository) GetProduct(ctx context.Context, id int64) (*model.Product, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, name, description, brand, price_usd, weight_kg, available, image_url, fixed_price_clp, created_at
		 FROM products WHERE id = $1`,
		id,
	)

	var p model.Product
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Brand, &p.PriceUSD, &p.WeightKG,
		&p.Available, &p.ImageURL, &p.FixedPriceCLP, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("get product: %w", err)
	}

	return &p, nil
}

// ListProducts возвращает товары каталога. При onlyAvailable=true
// возвращаются только доступные к заказу.
func (r *PostgresRepository) ListProducts(ctx context.Context, onlyAvailable bool) ([]model.Product, error) {
	query := `SELECT id, name, description, brand, price_usd, weight_kg, available, image_url, fixed_price_clp, created_at
		 FROM products`
	if onlyAvailable {
		query += ` WHERE available`
	}
	query += ` ORDER BY id`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("select products: %w", err)
	}
	defer rows.Close()

	var res []model.Product
	for rows.Next() {
		var p model.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.Brand, &p.PriceUSD, &p.WeightKG,
			&p.Available, &p.ImageURL, &p.FixedPriceCLP, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		res = append(res, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// GetSettings возвращает единственную запись параметров расчёта.
// Все ставки читаются одним запросом: расчёт всегда видит согласованный
// снимок настроек, а не поля из разных версий записи.
func (r *PostgresRepository) GetSettings(ctx context.Context) (model.Settings, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT commission_pct, insurance_pct, freight_per_kg, tariff_pct, vat_pct, customs_rate, customs_updated_at
		 FROM settings WHERE id = 1`,
	)

	var s model.Settings
	err := row.Scan(&s.CommissionPct, &s.InsurancePct, &s.FreightPerKG, &s.TariffPct, &s.VATPct,
		&s.CustomsRate, &s.CustomsUpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Settings{}, ErrSettingsNotFound
		}
		return model.Settings{}, fmt.Errorf("get settings: %w", err)
	}

	return s, nil
}

// UpdateSettings обновляет ставки расчёта одной атомарной записью.
// Таможенный курс обновляется отдельно через SetCustomsRate.
func (r *PostgresRepository) UpdateSettings(ctx context.Context, s model.Settings) error {
	cmdTag, err := r.pool.Exec(ctx,
		`UPDATE settings
		 SET commission_pct = $1, insurance_pct = $2, freight_per_kg = $3, tariff_pct = $4, vat_pct = $5
		 WHERE id = 1`,
		s.CommissionPct, s.InsurancePct, s.FreightPerKG, s.TariffPct, s.VATPct,
	)
	if err != nil {
		return fmt.Errorf("update settings: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrSettingsNotFound
	}
	return nil
}

// SetCustomsRate сохраняет таможенный курс и время его обновления.
func (r *PostgresRepository) SetCustomsRate(ctx context.Context, rate float64, at time.Time) error {
	return r.withRetry(ctx, func() error {
		cmdTag, err := r.pool.Exec(ctx,
			`UPDATE settings SET customs_rate = $1, customs_updated_at = $2 WHERE id = 1`,
			rate, at,
		)
		if err != nil {
			return fmt.Errorf("set customs rate: %w", err)
		}
		if cmdTag.RowsAffected() == 0 {
			return ErrSettingsNotFound
		}
		return nil
	})
}
