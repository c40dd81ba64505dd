// Package yolink talks to the YoLink cloud: OAuth2 tokens, the device API,
// and the shape of device reports delivered over MQTT.
//
// # Authentication
//
// TokenManager performs the client-credentials exchange once at startup
// and refresh-token exchanges afterwards. A token counts as expired
// ExpiryBuffer (10 minutes) before the server-declared lifetime ends.
//
//	tokens := yolink.NewTokenManager(cfg.YoLink.TokenURL, cfg.YoLink.ClientID, cfg.YoLink.ClientSecret,
//	    yolink.WithLogger(log))
//	if _, err := tokens.Acquire(ctx); err != nil {
//	    return err // no token, no bridge
//	}
//	go tokens.Run(ctx, time.Minute)
//
// # Device API
//
// APIClient posts {"method": ..., "time": "<epoch ms>"} with a bearer
// token. Only code "000000" is success.
//
//	api := yolink.NewAPIClient(cfg.YoLink.APIURL, tokens, nil)
//	devices, err := api.ListDevices(ctx)
//	homeID, err := api.HomeID(ctx)
//
// # Events
//
// ParseEvent decodes broker payloads. Events are transient and never
// persisted.
package yolink
