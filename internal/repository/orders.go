package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/mmeshcher/importadora-system/internal/model"
)

// CreateOrder создаёт заказ с зафиксированным курсом доллара.
// Курс сохраняется один раз и при последующих пересчётах не меняется.
func (r *PostgresRepository) CreateOrder(ctx context.Context, userID int64, exchangeRate float64) (*model.Order, error) {
	row := r.pool.QueryRow(ctx,
		`INSERT INTO orders (user_id, status, exchange_rate)
		 VALUES ($1, $2, $3)
		 RETURNING id, user_id, status, total_usd, total_clp, weight_kg, exchange_rate, payment_proof_url, final_total_clp, created_at`,
		userID, string(model.OrderStatusReceived), exchangeRate,
	)

	return scanOrder(row)
}

// GetOrder возвращает заказ по идентификатору.
func (r *PostgresRepository) GetOrder(ctx context.Context, id int64) (*model.Order, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, user_id, status, total_usd, total_clp, weight_kg, exchange_rate, payment_proof_url, final_total_clp, created_at
		 FROM orders WHERE id = $1`,
		id,
	)

	o, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	return o, nil
}

func scanOrder(row pgx.Row) (*model.Order, error) {
	var o model.Order
	var status string
	err := row.Scan(&o.ID, &o.UserID, &status, &o.TotalUSD, &o.TotalCLP, &o.WeightKG,
		&o.ExchangeRate, &o.PaymentProofURL, &o.FinalTotalCLP, &o.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan order: %w", err)
	}
	o.Status = model.OrderStatus(status)
	return &o, nil
}

// ListOrdersByUser возвращает заказы пользователя, новые первыми.
func (r *PostgresRepository) ListOrdersByUser(ctx context.Context, userID int64) ([]model.Order, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, user_id, status, total_usd, total_clp, weight_kg, exchange_rate, payment_proof_url, final_total_clp, created_at
		 FROM orders
		 WHERE user_id = $1
		 ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("select orders: %w", err)
	}
	defer rows.Close()

	var res []model.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, *o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// UpdateOrderStatus устанавливает статус заказа.
func (r *PostgresRepository) UpdateOrderStatus(ctx context.Context, id int64, status model.OrderStatus) error {
	cmdTag, err := r.pool.Exec(ctx,
		`UPDATE orders SET status = $2 WHERE id = $1`,
		id, string(status),
	)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrOrderNotFound
	}
	return nil
}

// SetPaymentProof сохраняет ссылку на подтверждение оплаты заказа.
func (r *PostgresRepository) SetPaymentProof(ctx context.Context, id int64, url string) error {
	cmdTag, err := r.pool.Exec(ctx,
		`UPDATE orders SET payment_proof_url = $2 WHERE id = $1`,
		id, url,
	)
	if err != nil {
		return fmt.Errorf("set payment proof: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrOrderNotFound
	}
	return nil
}

// GetLineItems возвращает позиции заказа в порядке добавления.
func (r *PostgresRepository) GetLineItems(ctx context.Context, orderID int64) ([]model.LineItem, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, order_id, product_id, quantity, subtotal_usd, subtotal_clp, weight_kg
		 FROM order_items
		 WHERE order_id = $1
		 ORDER BY id`,
		orderID,
	)
	if err != nil {
		return nil, fmt.Errorf("select line items: %w", err)
	}
	defer rows.Close()

	var res []model.LineItem
	for rows.Next() {
		var it model.LineItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.Quantity,
			&it.SubtotalUSD, &it.SubtotalCLP, &it.WeightKG); err != nil {
			return nil, fmt.Errorf("scan line item: %w", err)
		}
		res = append(res, it)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// GetLineItem возвращает позицию заказа по идентификатору.
func (r *PostgresRepository) GetLineItem(ctx context.Context, orderID, itemID int64) (*model.LineItem, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, order_id, product_id, quantity, subtotal_usd, subtotal_clp, weight_kg
		 FROM order_items
		 WHERE id = $1 AND order_id = $2`,
		itemID, orderID,
	)

	var it model.LineItem
	err := row.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.Quantity,
		&it.SubtotalUSD, &it.SubtotalCLP, &it.WeightKG)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrLineItemNotFound
		}
		return nil, fmt.Errorf("get line item: %w", err)
	}

	return &it, nil
}

// AddLineItem вставляет позицию заказа и одной транзакцией обновляет
// агрегаты заказа: читатель никогда не видит заказ с суммами,
// отстающими от его позиций.
func (r *PostgresRepository) AddLineItem(ctx context.Context, item model.LineItem, totals model.OrderTotals) (int64, error) {
	var id int64
	err := r.withRetry(ctx, func() error {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		err = tx.QueryRow(ctx,
			`INSERT INTO order_items (order_id, product_id, quantity, subtotal_usd, subtotal_clp, weight_kg)
			 VALUES ($1, $2, $3, $4, $5, $6)
			 RETURNING id`,
			item.OrderID, item.ProductID, item.Quantity, item.SubtotalUSD, item.SubtotalCLP, item.WeightKG,
		).Scan(&id)
		if err != nil {
			return fmt.Errorf("insert line item: %w", err)
		}

		if err := applyTotals(ctx, tx, item.OrderID, totals); err != nil {
			return err
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// UpdateLineItem обновляет позицию заказа вместе с агрегатами заказа.
func (r *PostgresRepository) UpdateLineItem(ctx context.Context, item model.LineItem, totals model.OrderTotals) error {
	return r.withRetry(ctx, func() error {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		cmdTag, err := tx.Exec(ctx,
			`UPDATE order_items
			 SET quantity = $3, subtotal_usd = $4, subtotal_clp = $5, weight_kg = $6
			 WHERE id = $1 AND order_id = $2`,
			item.ID, item.OrderID, item.Quantity, item.SubtotalUSD, item.SubtotalCLP, item.WeightKG,
		)
		if err != nil {
			return fmt.Errorf("update line item: %w", err)
		}
		if cmdTag.RowsAffected() == 0 {
			return ErrLineItemNotFound
		}

		if err := applyTotals(ctx, tx, item.OrderID, totals); err != nil {
			return err
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}
		return nil
	})
}

// DeleteLineItem удаляет позицию заказа вместе с пересчётом агрегатов.
func (r *PostgresRepository) DeleteLineItem(ctx context.Context, orderID, itemID int64, totals model.OrderTotals) error {
	return r.withRetry(ctx, func() error {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		cmdTag, err := tx.Exec(ctx,
			`DELETE FROM order_items WHERE id = $1 AND order_id = $2`,
			itemID, orderID,
		)
		if err != nil {
			return fmt.Errorf("delete line item: %w", err)
		}
		if cmdTag.RowsAffected() == 0 {
			return ErrLineItemNotFound
		}

		if err := applyTotals(ctx, tx, orderID, totals); err != nil {
			return err
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}
		return nil
	})
}

// applyTotals записывает агрегаты заказа внутри транзакции изменения
// позиций. Итог с пошлинами обновляется только если его удалось
// рассчитать: без таможенного курса прежнее значение сохраняется.
func applyTotals(ctx context.Context, tx pgx.Tx, orderID int64, totals model.OrderTotals) error {
	var err error
	if totals.FinalComputed {
		_, err = tx.Exec(ctx,
			`UPDATE orders
			 SET total_usd = $2, total_clp = $3, weight_kg = $4, final_total_clp = $5
			 WHERE id = $1`,
			orderID, totals.TotalUSD, totals.TotalCLP, totals.WeightKG, totals.FinalTotalCLP,
		)
	} else {
		_, err = tx.Exec(ctx,
			`UPDATE orders
			 SET total_usd = $2, total_clp = $3, weight_kg = $4
			 WHERE id = $1`,
			orderID, totals.TotalUSD, totals.TotalCLP, totals.WeightKG,
		)
	}
	if err != nil {
		return fmt.Errorf("update order totals: %w", err)
	}
	return nil
}

// CreateNotification создаёт уведомление пользователя.
func (r *PostgresRepository) CreateNotification(ctx context.Context, n model.Notification) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO notifications (user_id, type, content) VALUES ($1, $2, $3) RETURNING id`,
		n.UserID, string(n.Type), n.Content,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("create notification: %w", err)
	}
	return id, nil
}

// ListNotificationsByUser возвращает уведомления пользователя, новые первыми.
func (r *PostgresRepository) ListNotificationsByUser(ctx context.Context, userID int64) ([]model.Notification, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, user_id, type, content, read, created_at
		 FROM notifications
		 WHERE user_id = $1
		 ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("select notifications: %w", err)
	}
	defer rows.Close()

	var res []model.Notification
	for rows.Next() {
		var n model.Notification
		var typ string
		if err := rows.Scan(&n.ID, &n.UserID, &typ, &n.Content, &n.Read, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		n.Type = model.NotificationType(typ)
		res = append(res, n)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// MarkNotificationRead помечает уведомление пользователя прочитанным.
// Уведомления других пользователей недоступны.
func (r *PostgresRepository) MarkNotificationRead(ctx context.Context, userID, id int64) error {
	cmdTag, err := r.pool.Exec(ctx,
		`UPDATE notifications SET read = TRUE WHERE id = $1 AND user_id = $2`,
		id, userID,
	)
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrNotificationNotFound
	}
	return nil
}
