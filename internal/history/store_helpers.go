package history

import (
	"database/sql"
	"time"
)

const runColumns = "id, session_hash, prompt, negative_prompt, source, status, final_path, error_kind, error_message, failed_stage, created_at, updated_at"

func scanRun(scanner interface{ Scan(dest ...any) error }) (*Run, error) {
	var (
		run          Run
		source       sql.NullString
		statusStr    string
		finalPath    sql.NullString
		errorKind    sql.NullString
		errorMessage sql.NullString
		failedStage  sql.NullInt64
		createdRaw   string
		updatedRaw   string
	)

	if err := scanner.Scan(
		&run.ID,
		&run.SessionHash,
		&run.Prompt,
		&run.NegativePrompt,
		&source,
		&statusStr,
		&finalPath,
		&errorKind,
		&errorMessage,
		&failedStage,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	run.Source = source.String
	run.Status = Status(statusStr)
	run.FinalPath = finalPath.String
	run.ErrorKind = errorKind.String
	run.ErrorMessage = errorMessage.String
	if failedStage.Valid {
		stage := int(failedStage.Int64)
		run.FailedStage = &stage
	}
	run.CreatedAt = parseTime(createdRaw)
	run.UpdatedAt = parseTime(updatedRaw)
	return &run, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func timestamp() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

func parseTime(raw string) time.Time {
	if raw == "" {
		return time.Time{}
	}
	parsed, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}
	}
	return parsed
}
