/*
 * vardr - queue-driven collector
 *
 * Copyright (c) 2024 Telenor Norge AS
 *
 * This library is free software; you can redistribute it and/or
 * modify it under the terms of the GNU Lesser General Public
 * License as published by the Free Software Foundation; either
 * version 2.1 of the License, or (at your option) any later version.
 *
 * This library is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
 * Lesser General Public License for more details.
 *
 * You should have received a copy of the GNU Lesser General Public
 * License along with this library; if not, write to the Free Software
 * Foundation, Inc., 51 Franklin Street, Fifth Floor, Boston, MA
 * 02110-1301  USA
 */

/*
vardr-amqp collects on demand instead of on a schedule: it consumes
collection orders from a rabbitmq queue, so an external system (alarm
correlation, a change window script) can say "snapshot this router
now" without waiting for the next interval.
*/
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"net/url"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/telenornms/vardr"
	"github.com/telenornms/vardr/collect"
	"github.com/telenornms/vardr/inventory"
	"github.com/telenornms/vardr/store"
)

// Order asks for one device collection. Target names an inventory
// device; the optional overrides cover targets the inventory hasn't
// caught up with yet.
//
// ID is an optional identification which is not used by vardr at all,
// but included in the emitted metric to allow a caller to match the
// order to the result.
type Order struct {
	Target   string
	Hostname string `json:",omitempty"` // override inventory address
	Vendor   string `json:",omitempty"`
	Platform string `json:",omitempty"`
	Username string `json:",omitempty"`
	Password string `json:",omitempty"`
	ID       string `json:",omitempty"`
	delivery amqp.Delivery
}

func (o Order) String() string {
	return o.Target
}

type listener struct {
	engine  *collect.Engine
	devices map[string]inventory.Device
}

// device resolves an order against the inventory, with the order's
// own fields winning where set.
func (l *listener) device(o Order) (inventory.Device, error) {
	d, ok := l.devices[o.Target]
	if !ok {
		if o.Hostname == "" {
			return d, fmt.Errorf("target %s not in inventory and no hostname in order", o.Target)
		}
		d = inventory.Device{Name: o.Target}
	}
	if o.Hostname != "" {
		d.Hostname = o.Hostname
	}
	if o.Vendor != "" {
		d.Vendor = o.Vendor
	}
	if o.Platform != "" {
		d.Platform = o.Platform
	}
	if o.Username != "" {
		d.Username = o.Username
	}
	if o.Password != "" {
		d.Password = o.Password
	}
	return d, nil
}

func (l *listener) run(o Order) error {
	d, err := l.device(o)
	if err != nil {
		return err
	}
	_, err = l.engine.Device(context.Background(), d)
	return err
}

func (l *listener) listen(c chan Order, name string) {
	vardr.Debugf("Starting listener %s...", name)
	for order := range c {
		now := time.Now()
		err := l.run(order)
		since := time.Since(now).Round(time.Millisecond * 10)
		if err != nil {
			requeue := true
			if order.delivery.Redelivered {
				requeue = false
			}
			vardr.Logf("[%2s]: %-15s FAIL %s: %s (requeue: %v)", name, order, since.String(), err, requeue)
			if requeue {
				delayR := rand.Int() % 10
				d := time.Second*1 + time.Second*time.Duration(delayR)
				vardr.Debugf("Sleeping %v before NACK/requeue", d)
				time.Sleep(d)
			}
			err2 := order.delivery.Nack(false, requeue)
			if err2 != nil {
				vardr.Logf("NAck failed: %s", err2)
			}
		} else {
			vardr.Logf("[%2s]: %-15s OK %s", name, order, since.String())
			err2 := order.delivery.Ack(false)
			if err2 != nil {
				vardr.Logf("Ack failed: %s", err2)
			}
		}
	}
}

func main() {
	var configFile string
	var debug bool
	flag.StringVar(&configFile, "f", "/etc/vardr/vardr.yaml", "config file")
	flag.BoolVar(&debug, "debug", false, "enable debug")
	flag.Parse()

	cfg, err := vardr.ParseFile(configFile)
	if err != nil {
		vardr.Fatalf("Couldn't parse config: %s", err)
	}
	if debug {
		cfg.Debug = true
	}
	vardr.Init(cfg.Debug)
	if cfg.Broker == "" {
		vardr.Fatalf("no broker configured")
	}

	st, err := store.Open(cfg.Database)
	if err != nil {
		vardr.Fatalf("Couldn't open store: %s", err)
	}
	defer st.Close()
	engine, err := collect.New(cfg, st)
	if err != nil {
		vardr.Fatalf("Couldn't initialize engine: %s", err)
	}

	devices, err := inventory.Load(cfg.Inventory)
	if err != nil {
		vardr.Fatalf("Couldn't load inventory: %s", err)
	}
	l := &listener{engine: engine, devices: map[string]inventory.Device{}}
	for _, d := range devices {
		l.devices[d.Name] = d
	}

	c := make(chan Order, 0)
	for i := 0; i < cfg.Workers; i++ {
		go l.listen(c, fmt.Sprintf("%d", i))
		time.Sleep(time.Microsecond * 20)
	}
	vardr.Logf("Started %d workers", cfg.Workers)

	amUrl, err := url.Parse(cfg.Broker)
	if err != nil {
		vardr.Fatalf("Can't parse broker url: %s", err)
	}
	vardr.Debugf("Connecting to broker: %v", amUrl.Redacted())
	conn, err := amqp.Dial(cfg.Broker)
	if err != nil {
		vardr.Fatalf("can't connect to broker: %s", err)
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		vardr.Fatalf("can't get channel: %s", err)
	}
	defer ch.Close()
	err = ch.Qos(cfg.Workers+1, 0, true)
	if err != nil {
		vardr.Fatalf("can't set qos: %s", err)
	}

	q, err := ch.QueueDeclare(
		"vardr", // name
		false,   // durable
		false,   // delete when unused
		false,   // exclusive
		false,   // no-wait
		nil,     // arguments
	)
	if err != nil {
		vardr.Fatalf("can't declare queue: %s", err)
	}

	msgs, err := ch.Consume(
		q.Name, // queue
		"",     // consumer
		false,  // auto-ack
		false,  // exclusive
		false,  // no-local
		false,  // no-wait
		nil,    // args
	)
	if err != nil {
		vardr.Fatalf("can't register consumer: %s", err)
	}
	vardr.Logf("Listening for orders")
	for d := range msgs {
		order := Order{}
		err = json.Unmarshal(d.Body, &order)
		if err != nil {
			vardr.Logf("order json unmarshal: %s", err)
			d.Reject(false)
			continue
		}
		order.delivery = d
		c <- order
	}
	vardr.Logf("Reached the end. Connection probably dead. Some day, we'll handle this, but not today.")
}
