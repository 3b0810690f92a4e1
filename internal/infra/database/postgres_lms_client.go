// internal/infra/database/postgres_lms_client.go
package database

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

const defaultLMSCallTimeout = 3 * time.Second

// PostgresLMSClient keeps one SCORM attempt per course and learner in
// PostgreSQL. Values are cached after Initialize; SetValue only touches the
// cache and Commit writes the changed elements in one transaction. The cache
// stays usable while a commit is running.
type PostgresLMSClient struct {
	db        *sql.DB
	courseID  string
	learnerID int64
	timeout   time.Duration
	log       *logrus.Entry

	flushMu     sync.Mutex // one commit at a time
	mu          sync.Mutex
	attemptID   uuid.UUID
	initialized bool
	values      map[string]string
	dirty       map[string]bool
}

func NewPostgresLMSClient(db *sql.DB, courseID string, learnerID int64, log *logrus.Entry) *PostgresLMSClient {
	return &PostgresLMSClient{
		db:        db,
		courseID:  courseID,
		learnerID: learnerID,
		timeout:   defaultLMSCallTimeout,
		log: log.WithFields(logrus.Fields{
			"component":  "postgres_lms",
			"course_id":  courseID,
			"learner_id": learnerID,
		}),
		values: make(map[string]string),
		dirty:  make(map[string]bool),
	}
}

// AttemptID is uuid.Nil until Initialize succeeds.
func (c *PostgresLMSClient) AttemptID() uuid.UUID {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attemptID
}

// Initialize opens (or reopens) the learner's attempt and loads its values.
func (c *PostgresLMSClient) Initialize() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.initialized {
		return true
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	var id uuid.UUID
	query := `INSERT INTO lms_attempts (id, course_id, learner_id)
               VALUES ($1, $2, $3)
               ON CONFLICT (course_id, learner_id)
               DO UPDATE SET terminated_at = NULL, updated_at = NOW()
               RETURNING id`
	if err := c.db.QueryRowContext(ctx, query, uuid.New(), c.courseID, c.learnerID).Scan(&id); err != nil {
		c.log.WithError(err).Error("Failed to open LMS attempt")
		return false
	}

	values, err := c.loadValues(ctx, id)
	if err != nil {
		c.log.WithError(err).Error("Failed to load LMS values")
		return false
	}

	c.attemptID = id
	c.values = values
	c.dirty = make(map[string]bool)
	c.initialized = true
	c.log.WithFields(logrus.Fields{"attempt_id": id, "values": len(values)}).Info("LMS attempt opened")
	return true
}

func (c *PostgresLMSClient) loadValues(ctx context.Context, attemptID uuid.UUID) (map[string]string, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT element, value FROM lms_cmi_values WHERE attempt_id = $1`, attemptID)
	if err != nil {
		return nil, fmt.Errorf("error querying lms values: %w", err)
	}
	defer rows.Close()

	values := make(map[string]string)
	for rows.Next() {
		var element, value string
		if err := rows.Scan(&element, &value); err != nil {
			return nil, fmt.Errorf("error scanning lms value row: %w", err)
		}
		values[element] = value
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating lms value rows: %w", err)
	}
	return values, nil
}

func (c *PostgresLMSClient) GetValue(element string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.values[element]
}

func (c *PostgresLMSClient) SetValue(element, value string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.initialized || element == "" {
		return false
	}
	if current, ok := c.values[element]; ok && current == value {
		return true
	}
	c.values[element] = value
	c.dirty[element] = true
	return true
}

// Commit writes pending values. On failure they stay pending for the next
// Commit.
func (c *PostgresLMSClient) Commit() bool {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()
	return c.Flush(ctx) == nil
}

// Flush is Commit with a caller-supplied context. Elements changed again
// while the transaction ran stay pending.
func (c *PostgresLMSClient) Flush(ctx context.Context) error {
	c.flushMu.Lock()
	defer c.flushMu.Unlock()

	c.mu.Lock()
	if !c.initialized {
		c.mu.Unlock()
		return fmt.Errorf("lms attempt not initialized")
	}
	if len(c.dirty) == 0 {
		c.mu.Unlock()
		return nil
	}
	attemptID := c.attemptID
	elements := make([]string, 0, len(c.dirty))
	for element := range c.dirty {
		elements = append(elements, element)
	}
	sort.Strings(elements)
	values := make([]string, len(elements))
	for i, element := range elements {
		values[i] = c.values[element]
	}
	c.mu.Unlock()

	if err := c.upsertValues(ctx, attemptID, elements, values); err != nil {
		c.log.WithError(err).WithField("elements", len(elements)).Warn("LMS commit failed")
		return err
	}

	c.mu.Lock()
	for i, element := range elements {
		if c.values[element] == values[i] {
			delete(c.dirty, element)
		}
	}
	c.mu.Unlock()
	c.log.WithField("elements", len(elements)).Debug("LMS values committed")
	return nil
}

func (c *PostgresLMSClient) upsertValues(ctx context.Context, attemptID uuid.UUID, elements, values []string) error {
	txn, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction for lms commit: %w", err)
	}
	defer txn.Rollback() // Rollback if not committed

	_, err = txn.ExecContext(ctx, `INSERT INTO lms_cmi_values (attempt_id, element, value, updated_at)
                                   SELECT $1, t.element, t.value, NOW()
                                   FROM unnest($2::text[], $3::text[]) AS t(element, value)
                                   ON CONFLICT (attempt_id, element)
                                   DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()`,
		attemptID, pq.Array(elements), pq.Array(values))
	if err != nil {
		return fmt.Errorf("error upserting lms values: %w", err)
	}
	if _, err = txn.ExecContext(ctx, `UPDATE lms_attempts SET updated_at = NOW() WHERE id = $1`, attemptID); err != nil {
		return fmt.Errorf("error touching lms attempt: %w", err)
	}
	return txn.Commit()
}

// Terminate commits what is pending and closes the attempt.
func (c *PostgresLMSClient) Terminate() bool {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()
	if err := c.Flush(ctx); err != nil {
		return false
	}

	attemptID := c.AttemptID()
	if _, err := c.db.ExecContext(ctx, `UPDATE lms_attempts SET terminated_at = NOW(), updated_at = NOW() WHERE id = $1`, attemptID); err != nil {
		c.log.WithError(err).Error("Failed to close LMS attempt")
		return false
	}
	c.mu.Lock()
	c.initialized = false
	c.mu.Unlock()
	c.log.Info("LMS attempt closed")
	return true
}
