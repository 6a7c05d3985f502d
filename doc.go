// Package stagecopy moves tabular data between local delimited files and
// cloud data warehouses (Redshift, Snowflake) through object storage.
//
// Bulk loading a warehouse row by row is slow; the warehouses instead read
// files staged in S3 or GCS with a single COPY statement, and write query
// results back out with UNLOAD. stagecopy automates the round trip:
//
//   - Load: split a file, compress the parts, upload them, run COPY,
//     then delete the staged objects.
//   - Unload: run UNLOAD (or COPY INTO a location), download the parts,
//     decompress and join them into one local file, then delete the objects.
//
// # Architecture
//
// Every transfer is an ordered list of stages run by internal/pipeline. The
// first failing stage decides the returned error, tagged with the stage
// name; cleanup hooks registered by earlier stages always run afterwards and
// only surface their own errors when nothing else failed.
//
// # Quick Start
//
//	cfg, _ := config.LoadFile("redshift.yaml", config.KindRedshift)
//	client, _ := storage.NewS3Client(ctx, cfg.Storage)
//	gw := storage.NewGateway(client)
//
//	err := transfer.WithSession(ctx, warehouse.NewRedshiftDriver(), command.Redshift{}, gw, cfg,
//	    func(s *transfer.Session) error {
//	        _, err := s.Load(ctx, transfer.LoadOptions{
//	            Source:      "events.csv",
//	            Table:       "public.events",
//	            Bucket:      "staging",
//	            Splits:      4,
//	            CopyOptions: []string{"DELIMITER ','", "IGNOREHEADER 1"},
//	        })
//	        return err
//	    })
//
// # Key Packages
//
//	pkg/transfer     - Sessions and the load/unload flows
//	pkg/command      - COPY/UNLOAD statement builders per warehouse dialect
//	pkg/warehouse    - Cursor-based warehouse access (pgx, gosnowflake)
//	pkg/storage      - S3/GCS clients and the concurrent transfer gateway
//	pkg/fileutil     - Split, compress, concatenate and type inference
//	pkg/compression  - gzip (parallel) and zstd codecs
//	pkg/config       - YAML configuration with ${ENV} substitution
//	pkg/errors       - Structured errors tagged with type and stage
//	pkg/logger       - Structured logging
//	pkg/metrics      - Prometheus stage, file and byte counters
//	pkg/observability - OpenTelemetry spans per stage
//
// # Configuration
//
// A config file names the warehouse kind and its connection and storage
// settings:
//
//	kind: redshift
//	connection:
//	  host: cluster.example.us-east-1.redshift.amazonaws.com
//	  database: analytics
//	  user: loader
//	  password: ${REDSHIFT_PASSWORD}
//	storage:
//	  region: us-east-1
//	  warehouse_role_arn: arn:aws:iam::123456789012:role/redshift-copy
//
// A flat mapping of connection keys is accepted as well. CLI flags and
// STAGECOPY_* environment variables override the file.
package stagecopy
