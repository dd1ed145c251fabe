package assistant

import (
	"context"
	"database/sql"
	"errors"
)

// PostgresRepo reads the assistants table.
//
// Expected schema:
//
//	assistants (
//	  id UUID PRIMARY KEY,
//	  user_id TEXT NOT NULL,
//	  name TEXT NOT NULL,
//	  system_prompt TEXT NOT NULL,
//	  first_message TEXT,
//	  stt_provider TEXT NOT NULL, stt_model TEXT, stt_language TEXT,
//	  llm_provider TEXT NOT NULL, llm_model TEXT,
//	  tts_provider TEXT NOT NULL, tts_model TEXT, tts_voice TEXT,
//	  active BOOLEAN NOT NULL DEFAULT TRUE,
//	  created_at TIMESTAMPTZ NOT NULL,
//	  updated_at TIMESTAMPTZ NOT NULL
//	)
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) Get(ctx context.Context, id string) (Assistant, error) {
	const q = `
SELECT id, user_id, name, system_prompt, COALESCE(first_message, ''),
       stt_provider, COALESCE(stt_model, ''), COALESCE(stt_language, ''),
       llm_provider, COALESCE(llm_model, ''),
       tts_provider, COALESCE(tts_model, ''), COALESCE(tts_voice, ''),
       active, created_at, updated_at
FROM assistants
WHERE id = $1
`
	var a Assistant
	err := r.db.QueryRowContext(ctx, q, id).Scan(
		&a.ID,
		&a.UserID,
		&a.Name,
		&a.SystemPrompt,
		&a.FirstMessage,
		&a.STT.Provider,
		&a.STT.Model,
		&a.STT.Language,
		&a.LLM.Provider,
		&a.LLM.Model,
		&a.TTS.Provider,
		&a.TTS.Model,
		&a.TTS.Voice,
		&a.Active,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Assistant{}, ErrAssistantNotFound
	}
	if err != nil {
		return Assistant{}, err
	}
	return a, nil
}
