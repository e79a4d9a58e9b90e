// Package mqtt carries the notes change feed over an MQTT broker.
//
// Every successful write through the notes repositories is announced on
// {prefix}/change/{entity}/{action}. Other processes sharing the database
// file watch the feed to refresh their views. A retained message on
// {prefix}/system/status tells watchers whether the announcing store is
// up; the broker publishes the offline status itself if the process dies.
//
//	notes repositories → Feed.Announce → broker → Feed.Watch
//
// Payloads carry ids only, never note content. Enable TLS
// (cfg.Broker.TLS) when the broker is not on localhost.
//
// # Usage
//
//	feed, err := mqtt.Connect(cfg.MQTT,
//	    mqtt.WithLogger(log),
//	    mqtt.OnConnect(func(reconnect bool) { ... }),
//	)
//	if err != nil {
//	    return err
//	}
//	defer feed.Close()
//
//	err = feed.Watch(feed.Topics().AllChanges(), func(topic string, payload []byte) error {
//	    fmt.Printf("%s %s\n", topic, payload)
//	    return nil
//	})
//
//	err = feed.Announce("note", "created", event)
package mqtt
