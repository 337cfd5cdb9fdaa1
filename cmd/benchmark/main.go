package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"time"

	"github.com/joripage/tradesim/pkg/oms"
	"github.com/joripage/tradesim/pkg/oms/model"
	"github.com/shopspring/decimal"
)

const (
	minPrice = 100.0
	maxPrice = 200.0
	minQty   = 1
	maxQty   = 100
)

var sessions = []string{"BENCH-A", "BENCH-B"}

func randomOrder(r *rand.Rand, id int, symbol string) *model.AddOrder {
	side := model.OrderSideBuy
	if r.Intn(2) == 0 {
		side = model.OrderSideSell
	}
	price := minPrice + r.Float64()*(maxPrice-minPrice)

	return &model.AddOrder{
		Session:  sessions[id%len(sessions)],
		ClOrdID:  fmt.Sprintf("ORD-%07d", id),
		Symbol:   symbol,
		Type:     model.OrderTypeLimit,
		Side:     side,
		Price:    decimal.NewFromFloat(price).Round(2),
		Quantity: decimal.NewFromInt(int64(r.Intn(maxQty-minQty+1) + minQty)),
	}
}

func main() {
	var numOrders int
	var symbol string
	flag.IntVar(&numOrders, "n", 1_000_000, "number of orders")
	flag.StringVar(&symbol, "symbol", "ABC", "symbol")
	flag.Parse()

	r := rand.New(rand.NewSource(time.Now().UnixNano()))
	o := oms.NewOMS(oms.Config{})
	for _, s := range sessions {
		o.OnLogon(s)
	}

	ctx := context.Background()
	var acks, fills, rejects int
	filledQty := decimal.Zero

	start := time.Now()
	for i := 0; i < numOrders; i++ {
		for _, env := range o.AddOrder(ctx, randomOrder(r, i+1, symbol)) {
			switch rep := env.Report.(type) {
			case *model.Ack:
				acks++
			case *model.Fill:
				fills++
				filledQty = filledQty.Add(rep.LastQty)
			case *model.Reject:
				rejects++
			}
		}
	}
	elapsed := time.Since(start)

	fmt.Println("--------")
	fmt.Printf("Total orders    : %d\n", numOrders)
	fmt.Printf("Acks            : %d\n", acks)
	fmt.Printf("Fill reports    : %d\n", fills)
	fmt.Printf("Rejects         : %d\n", rejects)
	fmt.Printf("Filled qty      : %s\n", filledQty)
	fmt.Printf("Time taken      : %s\n", elapsed)
	fmt.Printf("Orders / second : %.0f\n", float64(numOrders)/elapsed.Seconds())
}
