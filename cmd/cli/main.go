package main

import (
	"context"
	"fmt"
	"os"

	"github.com/sitecraft/webhook-outbox/config"
	"github.com/sitecraft/webhook-outbox/delivery"
	deliveryredis "github.com/sitecraft/webhook-outbox/delivery/redis"
	"github.com/sitecraft/webhook-outbox/delivery/sender"
)

// One-shot dispatcher: with no arguments it runs a single sweep of all
// due deliveries; with a delivery id it dispatches just that record.
func main() {
	cfg, err := config.GetConfig()
	if err != nil {
		fmt.Println(err)
		return
	}
	ctx := context.Background()
	repo, err := deliveryredis.NewRepository(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		fmt.Println(err)
		return
	}
	defer repo.Close(ctx)

	health := delivery.NewHealthTracker(repo, cfg.FailureThreshold)
	s := delivery.NewService(repo, sender.New(), health)

	var results []delivery.Result
	if len(os.Args) > 1 {
		results, err = s.Dispatch(ctx, os.Args[1])
	} else {
		results, err = s.Sweep(ctx)
	}
	if err != nil {
		fmt.Println(err)
		return
	}

	fmt.Printf("processed %d deliveries\n", len(results))
	for _, r := range results {
		fmt.Printf("  %s -> %s success=%t status=%d elapsed=%dms %s\n",
			r.DeliveryID, r.EndpointID, r.Success, r.StatusCode, r.ElapsedMs, r.Error)
	}
}
