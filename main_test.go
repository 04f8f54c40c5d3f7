package docgrapher

import (
	"context"
	"log"
	"os"
	"testing"
	"time"

	"github.com/siherrmann/docgrapher/helper"
)

var dbPort string

func TestMain(m *testing.M) {
	teardown, port, err := helper.MustStartPostgresContainer()
	if err != nil {
		log.Fatalf("error starting postgres container: %v", err)
	}
	dbPort = port

	code := m.Run()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := teardown(ctx); err != nil {
		log.Printf("error tearing down postgres container: %v", err)
	}
	cancel()
	os.Exit(code)
}
