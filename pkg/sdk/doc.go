// Package skurag embeds the SKU retrieval pipeline in a Go program without the HTTP service.
//
// A Client loads a product catalog once, embeds every description and answers
// free-text queries with the closest records. It can also assemble the full
// chat prompt for a voice-agent turn, leaving the completion call to the caller.
//
//	client, _ := skurag.New(ctx,
//	    skurag.WithCatalogFile("data/catalog.json"),
//	    skurag.WithTopK(3),
//	)
//	defer client.Close()
//
//	hits, _ := client.Retrieve(ctx, "warm red sweater", 3)
//	msgs, _ := client.Prompt(ctx, []skurag.Utterance{
//	    {Role: skurag.RoleUser, Content: "do you have anything warm in red?"},
//	}, false)
//
// The default embedder is a deterministic local encoder. Use WithOpenAI or
// WithEmbedder for a hosted model, and WithValkeyCache to share embeddings
// between processes.
package skurag
