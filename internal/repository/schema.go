package repository

import (
	"context"
	"fmt"

	"entgo.io/ent/dialect/entsql"
	"entgo.io/ent/dialect/sql/schema"
	"entgo.io/ent/schema/field"
)

const (
	jobsTable    = "extraction_jobs"
	resultsTable = "extraction_results"
)

var (
	// ExtractionJobsColumns holds the columns for the "extraction_jobs" table.
	ExtractionJobsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeUUID},
		{Name: "subject_id", Type: field.TypeString, Size: 255},
		{Name: "status", Type: field.TypeString, Size: 16},
		{Name: "progress_percent", Type: field.TypeInt, Default: 0},
		{Name: "progress_message", Type: field.TypeString, Default: ""},
		{Name: "requested_method", Type: field.TypeString, Size: 16},
		{Name: "extraction_method", Type: field.TypeString, Nullable: true},
		{Name: "error_message", Type: field.TypeString, Nullable: true, Size: 2147483647},
		{Name: "created_at", Type: field.TypeTime},
		{Name: "started_at", Type: field.TypeTime, Nullable: true},
		{Name: "completed_at", Type: field.TypeTime, Nullable: true},
	}
	// ExtractionJobsTable holds the schema information for the "extraction_jobs" table.
	ExtractionJobsTable = &schema.Table{
		Name:       jobsTable,
		Columns:    ExtractionJobsColumns,
		PrimaryKey: []*schema.Column{ExtractionJobsColumns[0]},
		Indexes: []*schema.Index{
			{
				Name:    "extractionjob_subject_id_created_at",
				Columns: []*schema.Column{ExtractionJobsColumns[1], ExtractionJobsColumns[8]},
			},
			{
				// at most one active job per subject, across replicas
				Name:       "extractionjob_subject_id_active",
				Unique:     true,
				Columns:    []*schema.Column{ExtractionJobsColumns[1]},
				Annotation: &entsql.IndexAnnotation{Where: "status IN ('PENDING', 'PROCESSING')"},
			},
		},
	}
	// ExtractionResultsColumns holds the columns for the "extraction_results" table.
	ExtractionResultsColumns = []*schema.Column{
		{Name: "job_id", Type: field.TypeUUID},
		{Name: "subject_id", Type: field.TypeString, Size: 255},
		{Name: "text", Type: field.TypeString, Size: 2147483647},
		{Name: "method", Type: field.TypeString},
		{Name: "confidence", Type: field.TypeFloat64},
		{Name: "language", Type: field.TypeString, Size: 16},
		{Name: "processing_duration_ms", Type: field.TypeInt64},
		{Name: "metadata", Type: field.TypeJSON},
		{Name: "created_at", Type: field.TypeTime},
	}
	// ExtractionResultsTable holds the schema information for the "extraction_results" table.
	ExtractionResultsTable = &schema.Table{
		Name:       resultsTable,
		Columns:    ExtractionResultsColumns,
		PrimaryKey: []*schema.Column{ExtractionResultsColumns[0]},
		ForeignKeys: []*schema.ForeignKey{
			{
				Symbol:     "extraction_results_extraction_jobs_result",
				Columns:    []*schema.Column{ExtractionResultsColumns[0]},
				RefColumns: []*schema.Column{ExtractionJobsColumns[0]},
				OnDelete:   schema.Cascade,
			},
		},
		Indexes: []*schema.Index{
			{
				Name:    "extractionresult_subject_id_created_at",
				Columns: []*schema.Column{ExtractionResultsColumns[1], ExtractionResultsColumns[8]},
			},
		},
	}
	// Tables holds all the tables in the schema.
	Tables = []*schema.Table{
		ExtractionJobsTable,
		ExtractionResultsTable,
	}
)

func init() {
	ExtractionResultsTable.ForeignKeys[0].RefTable = ExtractionJobsTable
}

// Migrate creates or updates the tables.
func (db *DB) Migrate(ctx context.Context) error {
	m, err := schema.NewMigrate(db.drv)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	if err := m.Create(ctx, Tables...); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}
