package main

import (
	"fmt"
	"reflect"

	"github.com/nomadsim/esim_api/pkg/qpay"
)

func main() {
	t := reflect.TypeOf(qpay.CreateInvoiceRequest{})
	fmt.Println("Fields in CreateInvoiceRequest:")
	for i := 0; i < t.NumField(); i++ {
		fmt.Printf("- %s (%s)\n", t.Field(i).Name, t.Field(i).Tag.Get("json"))
	}
}
