// Command merch-console drives the record entry workflow against a running
// API: it fills a form from a JSON file, runs the barcode guard, saves the
// record and optionally posts the batch.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/merch-batch-api/internal/console"
	"github.com/noah-isme/merch-batch-api/internal/dto"
	"github.com/noah-isme/merch-batch-api/internal/models"
	"github.com/noah-isme/merch-batch-api/internal/schema"
	"github.com/noah-isme/merch-batch-api/pkg/config"
	"github.com/noah-isme/merch-batch-api/pkg/logger"
)

type logNotifier struct {
	log *zap.SugaredLogger
}

func (n logNotifier) Success(title, message string) {
	n.log.Infow(title, "message", message)
}

func (n logNotifier) Error(title, message string) {
	n.log.Errorw(title, "message", message)
}

func main() {
	var (
		requestType string
		batchNumber string
		fieldsPath  string
		imagePath   string
		token       string
		post        bool
		timeout     time.Duration
	)

	flag.StringVar(&requestType, "type", string(models.RequestChangeDescription), "Request type of the record")
	flag.StringVar(&batchNumber, "batch", "", "Existing batch number; a new batch is opened when empty")
	flag.StringVar(&fieldsPath, "fields", "", "Path to a JSON object of field values")
	flag.StringVar(&imagePath, "image", "", "Optional item image to attach")
	flag.StringVar(&token, "token", os.Getenv("CONSOLE_TOKEN"), "Bearer token")
	flag.BoolVar(&post, "post", false, "Post the batch after saving")
	flag.DurationVar(&timeout, "timeout", 2*time.Minute, "Overall timeout")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck
	sugar := logr.Sugar()

	if fieldsPath == "" {
		sugar.Fatal("-fields is required")
	}
	fields, err := readFields(fieldsPath)
	if err != nil {
		sugar.Fatalw("failed to read fields", "path", fieldsPath, "error", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	client := console.NewClient(cfg.Console.BaseURL, console.WithToken(token))
	rt := models.RequestType(requestType)
	if batchNumber == "" {
		batchNumber, err = client.GenerateBatch(ctx, rt)
		if err != nil {
			sugar.Fatalw("failed to open batch", "request_type", rt, "error", err)
		}
		sugar.Infow("batch opened", "batch_number", batchNumber)
	}

	registry := schema.NewRegistry(validator.New())
	form, err := console.NewForm(registry, rt,
		console.WithDebounce(cfg.Console.Debounce),
		console.WithLookup(client.BarcodeDetails, batchNumber),
	)
	if err != nil {
		sugar.Fatalw("failed to build form", "request_type", rt, "error", err)
	}

	workflow := console.NewWorkflow(client, form, logNotifier{log: sugar}, batchNumber, logr.Named("console"))
	if err := workflow.Init(ctx); err != nil {
		sugar.Fatalw("failed to load batch", "batch_number", batchNumber, "error", err)
	}

	for field, value := range fields {
		form.Set(field, value)
	}
	form.Flush()
	if lookup := form.LastLookup(); lookup != nil {
		sugar.Infow("item master match", "barcode", lookup.Barcode)
	}

	if imagePath != "" {
		data, err := os.ReadFile(imagePath)
		if err != nil {
			sugar.Fatalw("failed to read image", "path", imagePath, "error", err)
		}
		form.AttachImage(&dto.ImageUpload{Filename: filepath.Base(imagePath), Data: data})
	}

	if err := workflow.Submit(); err != nil {
		sugar.Fatalw("record is invalid", "errors", form.Errors(), "error", err)
	}
	outcome, err := workflow.Confirm(ctx)
	if err != nil {
		sugar.Fatalw("failed to confirm record", "error", err)
	}
	if outcome != console.OutcomeSaved {
		sugar.Fatalw("record not saved", "outcome", outcome)
	}
	sugar.Infow("record saved", "batch_number", batchNumber, "records", len(workflow.Records()))

	if post {
		if err := workflow.PostBatch(ctx); err != nil {
			sugar.Fatalw("failed to post batch", "batch_number", batchNumber, "error", err)
		}
	}
}

func readFields(path string) (map[string]interface{}, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	fields := map[string]interface{}{}
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, err
	}
	return fields, nil
}
