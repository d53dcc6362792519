// Package warehouse extracts raw sales and stock rows from the ERP
// reporting views.
package warehouse

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// SaleRow is one raw row from the unified sales view.
type SaleRow struct {
	CO             string
	Date           time.Time
	State          string
	WarehouseCode  string
	StoreName      string
	Reference      string
	ItemDesc       string
	Size           string
	Units          float64
	NetValue       float64
	Range          string
	Classification string
	Source         string
}

// StockRow is one raw row from the stock view.
type StockRow struct {
	Reference      string
	Size           string
	WarehouseCode  string
	COCode         string
	Range          string
	Classification string
	StoreName      string
	Available      float64
	InTransit      float64
	OnHand         float64
}

// DB wraps the reporting database connection.
type DB struct {
	conn *sql.DB
}

// Open connects to the reporting database and verifies the connection.
func Open(ctx context.Context, url string) (*DB, error) {
	conn, err := sql.Open("postgres", url)
	if err != nil {
		return nil, fmt.Errorf("opening warehouse database: %w", err)
	}
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("pinging warehouse database: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close releases the connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping verifies the connection is still usable.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

const salesQuery = `
SELECT co, fecha, estado, bodega, descripcion_co, referencia, desc_item,
       talla, cantidad_inv, valor_neto, rango, clasificacion, fuente
FROM mp_ventas_code
WHERE fecha::date >= CURRENT_DATE - make_interval(months => $1)
ORDER BY fecha DESC, co, referencia`

// FetchSales returns sales rows for the last N months.
func (db *DB) FetchSales(ctx context.Context, months int) ([]SaleRow, error) {
	rows, err := db.conn.QueryContext(ctx, salesQuery, months)
	if err != nil {
		return nil, fmt.Errorf("querying sales: %w", err)
	}
	defer rows.Close()

	var out []SaleRow
	for rows.Next() {
		var r SaleRow
		var units, netValue sql.NullFloat64
		err := rows.Scan(&r.CO, &r.Date, &r.State, &r.WarehouseCode, &r.StoreName,
			&r.Reference, &r.ItemDesc, &r.Size, &units, &netValue,
			&r.Range, &r.Classification, &r.Source)
		if err != nil {
			return nil, fmt.Errorf("scanning sales row: %w", err)
		}
		r.Units = units.Float64
		r.NetValue = netValue.Float64
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading sales rows: %w", err)
	}
	return out, nil
}

const stockQuery = `
SELECT referencia, detalle_ext_2, bodega, co_bodega, rango, clasificacion,
       desc_bodega, cant_disponible, cant_transito_ent, existencia
FROM mp_t400
ORDER BY desc_bodega, referencia`

// FetchStock returns the current stock snapshot.
func (db *DB) FetchStock(ctx context.Context) ([]StockRow, error) {
	rows, err := db.conn.QueryContext(ctx, stockQuery)
	if err != nil {
		return nil, fmt.Errorf("querying stock: %w", err)
	}
	defer rows.Close()

	var out []StockRow
	for rows.Next() {
		var r StockRow
		var available, inTransit, onHand sql.NullFloat64
		err := rows.Scan(&r.Reference, &r.Size, &r.WarehouseCode, &r.COCode,
			&r.Range, &r.Classification, &r.StoreName,
			&available, &inTransit, &onHand)
		if err != nil {
			return nil, fmt.Errorf("scanning stock row: %w", err)
		}
		r.Available = available.Float64
		r.InTransit = inTransit.Float64
		r.OnHand = onHand.Float64
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading stock rows: %w", err)
	}
	return out, nil
}
