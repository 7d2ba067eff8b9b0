// Package gotlive provides an on-demand text localization engine for UI
// strings.
//
// An Engine owns the selected language, a translation cache and a request
// queue in front of a remote Translator. UI code asks for a localized
// Element per string; the element shows the source text immediately, is
// swapped for the cached or freshly translated value when one arrives, and
// falls back to the source text when translation keeps failing.
//
// Identical strings requested by many elements produce one outbound call.
// Outbound calls are batched, bounded in concurrency and retried with
// exponential back-off. Changing the language clears the cache and
// invalidates every request still in flight.
//
// Basic usage:
//
//	import (
//	    "context"
//	    "github.com/ZaguanLabs/gotlive"
//	    "github.com/ZaguanLabs/gotlive/cache"
//	    "github.com/ZaguanLabs/gotlive/provider"
//	)
//
//	func main() {
//	    p := provider.NewOpenAIProvider(provider.OpenAIConfig{
//	        APIKey: os.Getenv("OPENAI_API_KEY"),
//	    })
//
//	    engine, err := gotlive.New(ctx, p,
//	        gotlive.WithCache(cache.NewInMemoryCache(0)),
//	    )
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    defer engine.Close()
//
//	    _ = engine.SetLanguage(ctx, "es")
//
//	    title := engine.Localize("Hello World")
//	    title.OnChange(func(s gotlive.State) { render(s.Display) })
//	}
package gotlive
