package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"bot-marketplace/internal/logger"
	"bot-marketplace/internal/models"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// ErrNotFound indica que o registro não existe
var ErrNotFound = errors.New("registro não encontrado")

// DB encapsula a conexão com o banco de dados
type DB struct {
	conn *sql.DB
	now  func() time.Time
}

// New cria uma nova instância do banco de dados
func New(dbPath string) (*DB, error) {
	dsn := dbPath
	if !strings.Contains(dsn, "?") {
		dsn += "?_busy_timeout=5000&_foreign_keys=on"
	}
	conn, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("abrir banco: %w", err)
	}
	// sqlite aceita um escritor por vez
	conn.SetMaxOpenConns(1)

	db := &DB{conn: conn, now: time.Now}

	if err := db.init(); err != nil {
		conn.Close()
		return nil, err
	}

	logger.Info("Banco de dados inicializado com sucesso", zap.String("caminho", dbPath))
	return db, nil
}

// Close fecha a conexão com o banco de dados
func (db *DB) Close() error {
	return db.conn.Close()
}

// init cria as tabelas necessárias
func (db *DB) init() error {
	schema := `
	CREATE TABLE IF NOT EXISTS global_products (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		threshold_min REAL NOT NULL DEFAULT 0,
		threshold_max REAL,
		keywords TEXT,
		exclusions TEXT,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_global_products_name ON global_products(name);

	CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS channel_notifications (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		url TEXT NOT NULL UNIQUE,
		product_name TEXT,
		last_price REAL,
		last_sent_at INTEGER NOT NULL,
		channel_id TEXT
	);
	`
	if _, err := db.conn.Exec(schema); err != nil {
		return fmt.Errorf("criar tabelas: %w", err)
	}
	return nil
}

// AddProduct adiciona uma faixa monitorada. Sem teto, o teto é igual ao piso.
func (db *DB) AddProduct(ctx context.Context, p models.TrackedProduct) (int64, error) {
	if p.ThresholdMax == 0 {
		p.ThresholdMax = p.ThresholdMin
	}
	keywords, err := encodeList(p.Keywords)
	if err != nil {
		return 0, err
	}
	exclusions, err := encodeList(p.Exclusions)
	if err != nil {
		return 0, err
	}

	now := db.now().Unix()
	res, err := db.conn.ExecContext(ctx,
		`INSERT INTO global_products (name, threshold_min, threshold_max, keywords, exclusions, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		strings.TrimSpace(p.Name), p.ThresholdMin, p.ThresholdMax, keywords, exclusions, now, now,
	)
	if err != nil {
		return 0, fmt.Errorf("inserir produto: %w", err)
	}
	return res.LastInsertId()
}

// TrackedProducts retorna todas as faixas na ordem de cadastro
func (db *DB) TrackedProducts(ctx context.Context) ([]models.TrackedProduct, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, name, threshold_min, threshold_max, keywords, exclusions, created_at, updated_at
		 FROM global_products ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("listar produtos: %w", err)
	}
	defer rows.Close()

	var products []models.TrackedProduct
	for rows.Next() {
		var (
			p                    models.TrackedProduct
			thrMax               sql.NullFloat64
			keywords, exclusions sql.NullString
			created, updated     int64
		)
		if err := rows.Scan(&p.ID, &p.Name, &p.ThresholdMin, &thrMax, &keywords, &exclusions, &created, &updated); err != nil {
			return nil, err
		}
		p.ThresholdMax = p.ThresholdMin
		if thrMax.Valid {
			p.ThresholdMax = thrMax.Float64
		}
		p.Keywords = decodeList(keywords)
		p.Exclusions = decodeList(exclusions)
		p.CreatedAt = time.Unix(created, 0)
		p.UpdatedAt = time.Unix(updated, 0)
		products = append(products, p)
	}
	return products, rows.Err()
}

// UpdateProductBand grava uma nova faixa de preço
func (db *DB) UpdateProductBand(ctx context.Context, id int64, lo, hi float64) error {
	res, err := db.conn.ExecContext(ctx,
		"UPDATE global_products SET threshold_min = ?, threshold_max = ?, updated_at = ? WHERE id = ?",
		lo, hi, db.now().Unix(), id,
	)
	if err != nil {
		return fmt.Errorf("atualizar faixa: %w", err)
	}
	return expectRow(res)
}

// DeleteProduct remove uma faixa
func (db *DB) DeleteProduct(ctx context.Context, id int64) error {
	res, err := db.conn.ExecContext(ctx, "DELETE FROM global_products WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("remover produto: %w", err)
	}
	return expectRow(res)
}

// DeleteAllProducts remove todas as faixas e retorna quantas eram
func (db *DB) DeleteAllProducts(ctx context.Context) (int64, error) {
	res, err := db.conn.ExecContext(ctx, "DELETE FROM global_products")
	if err != nil {
		return 0, fmt.Errorf("remover produtos: %w", err)
	}
	return res.RowsAffected()
}

// Setting lê uma configuração; ok é false quando a chave não existe ou está vazia
func (db *DB) Setting(ctx context.Context, key string) (string, bool, error) {
	var value sql.NullString
	err := db.conn.QueryRowContext(ctx, "SELECT value FROM settings WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("ler configuração %s: %w", key, err)
	}
	if !value.Valid || strings.TrimSpace(value.String) == "" {
		return "", false, nil
	}
	return value.String, true, nil
}

// SetSetting grava uma configuração
func (db *DB) SetSetting(ctx context.Context, key, value string) error {
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, db.now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("gravar configuração %s: %w", key, err)
	}
	return nil
}

// Notification retorna o registro da última notificação da URL, ou nil
func (db *DB) Notification(ctx context.Context, url string) (*models.LedgerEntry, error) {
	var (
		e       models.LedgerEntry
		name    sql.NullString
		price   sql.NullFloat64
		sentAt  int64
		channel sql.NullString
	)
	err := db.conn.QueryRowContext(ctx,
		"SELECT id, url, product_name, last_price, last_sent_at, channel_id FROM channel_notifications WHERE url = ?",
		url,
	).Scan(&e.ID, &e.URL, &name, &price, &sentAt, &channel)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("buscar notificação: %w", err)
	}

	e.ProductName = name.String
	e.ChannelID = channel.String
	e.LastSentAt = time.Unix(sentAt, 0)
	if price.Valid {
		p := price.Float64
		e.LastPrice = &p
	}
	return &e, nil
}

// UpsertNotification cria ou atualiza o registro da URL numa única instrução.
// Nome e canal vazios não sobrescrevem os valores gravados.
func (db *DB) UpsertNotification(ctx context.Context, url string, price float64, productName, channelID string) (*models.LedgerEntry, error) {
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO channel_notifications (url, product_name, last_price, last_sent_at, channel_id)
		 VALUES (?, NULLIF(?, ''), ?, ?, NULLIF(?, ''))
		 ON CONFLICT(url) DO UPDATE SET
			last_price = excluded.last_price,
			last_sent_at = excluded.last_sent_at,
			product_name = COALESCE(excluded.product_name, channel_notifications.product_name),
			channel_id = COALESCE(excluded.channel_id, channel_notifications.channel_id)`,
		url, productName, price, db.now().Unix(), channelID,
	)
	if err != nil {
		return nil, fmt.Errorf("registrar notificação: %w", err)
	}
	return db.Notification(ctx, url)
}

// PurgeNotifications remove registros enviados há mais de days dias
func (db *DB) PurgeNotifications(ctx context.Context, days int) (int64, error) {
	cutoff := db.now().Add(-time.Duration(days) * 24 * time.Hour).Unix()
	res, err := db.conn.ExecContext(ctx, "DELETE FROM channel_notifications WHERE last_sent_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("limpar notificações: %w", err)
	}
	return res.RowsAffected()
}

// CountNotifications retorna quantas URLs estão no registro
func (db *DB) CountNotifications(ctx context.Context) (int64, error) {
	var n int64
	err := db.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM channel_notifications").Scan(&n)
	return n, err
}

func expectRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func encodeList(list []string) (sql.NullString, error) {
	var clean []string
	for _, s := range list {
		if s = strings.TrimSpace(s); s != "" {
			clean = append(clean, s)
		}
	}
	if len(clean) == 0 {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(clean)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("codificar lista: %w", err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

// decodeList lê o JSON gravado; texto que não é JSON vira lista separada por vírgulas
func decodeList(s sql.NullString) []string {
	if !s.Valid || strings.TrimSpace(s.String) == "" {
		return nil
	}
	var list []string
	if err := json.Unmarshal([]byte(s.String), &list); err == nil {
		return list
	}
	list = nil
	for _, part := range strings.Split(s.String, ",") {
		if part = strings.TrimSpace(part); part != "" {
			list = append(list, part)
		}
	}
	return list
}
