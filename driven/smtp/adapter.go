// Copyright 2022 Board of Trustees of the University of Illinois.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package smtp sends direct transactional email. driven/notifications holds
// an Adapter for its dispatch-failure path but does not call SendEmail.
package smtp

import (
	"fmt"
	"log"
	"net/smtp"
)

// Adapter sends email directly through an SMTP relay.
type Adapter struct {
	host     string
	port     string
	username string
	password string
	fromAddr string
}

// NewSMTPAdapter creates a new direct-email adapter.
func NewSMTPAdapter(host string, port string, username string, password string, fromAddr string) *Adapter {
	return &Adapter{host: host, port: port, username: username, password: password, fromAddr: fromAddr}
}

// SendEmail sends a transactional email.
func (a *Adapter) SendEmail(to string, subject string, body string) error {
	if a.host == "" {
		log.Println("smtp: adapter not configured, dropping email")
		return nil
	}

	auth := smtp.PlainAuth("", a.username, a.password, a.host)
	msg := []byte(fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s\r\n", a.fromAddr, to, subject, body))

	addr := fmt.Sprintf("%s:%s", a.host, a.port)
	if err := smtp.SendMail(addr, auth, a.fromAddr, []string{to}, msg); err != nil {
		log.Printf("smtp: error sending mail to %s - %s", to, err)
		return err
	}
	return nil
}
