package kvquery_test

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/hupe1980/kvquery"
)

// Example demonstrates registering sets and evaluating a query.
func Example() {
	ctx := context.Background()

	kv, err := kvquery.New()
	if err != nil {
		log.Fatal(err)
	}
	defer kv.Close()

	c := kv.Cache()
	c.UpdateKeyValueSet("A", []string{"1", "2", "3"}, 1)
	c.UpdateKeyValueSet("B", []string{"2", "3", "4"}, 1)
	c.UpdateKeyValueSet("C", []string{"3", "4", "5"}, 1)
	c.UpdateKeyValueSet("D", []string{"1", "5"}, 1)

	elems, err := kv.RunQuery(ctx, "(A - B) | (C & D)")
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println(elems)
	// Output: [1 5]
}

// Example_uint32Sets demonstrates bitmap-backed sets.
func Example_uint32Sets() {
	ctx := context.Background()

	kv, _ := kvquery.New()
	c := kv.Cache()
	c.UpdateUInt32ValueSet("even", []uint32{0, 2, 4, 6, 8}, 1)
	c.UpdateUInt32ValueSet("small", []uint32{0, 1, 2, 3}, 1)

	ids, _ := kv.RunSetQueryInt(ctx, "even - small")
	fmt.Println(ids)
	// Output: [4 6 8]
}

// Example_errors demonstrates the error contract.
func Example_errors() {
	ctx := context.Background()

	kv, _ := kvquery.New()
	kv.Cache().UpdateKeyValueSet("A", []string{"x"}, 1)

	_, err := kv.RunQuery(ctx, "A &")
	fmt.Println(errors.Is(err, kvquery.ErrInvalidQuery))

	_, err = kv.RunQuery(ctx, "A | Z")
	fmt.Println(errors.Is(err, kvquery.ErrNotFound), err)

	values, _ := kv.GetKeyValues(ctx, []string{"missing"})
	fmt.Println(values["missing"].Err)
	// Output:
	// true
	// true set not found: Z
	// Key not found: missing
}
