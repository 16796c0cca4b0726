// Package server exposes the plain HTTP handlers: health check and the
// built-in chat page.
package server

import (
	"fmt"
	"log/slog"
	"net/http"
)

// HealthHandler provides a simple health check endpoint that returns server status.
func HealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprintf(w, "relay server is running")
}

// ChatPageHandler serves the embedded HTML chat client: a room picker backed
// by the rooms API, a join form, the message log, and the presence sidebar.
func ChatPageHandler(log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		if _, err := fmt.Fprint(w, chatPageHTML); err != nil {
			log.Error("failed to write chat page", "err", err)
		}
	}
}

const chatPageHTML = `<!DOCTYPE html>
<html>
<head>
    <title>Relay Chat</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 20px; }
        #layout { display: flex; gap: 10px; }
        #messages {
            border: 1px solid #ccc;
            height: 300px;
            flex: 1;
            padding: 10px;
            overflow-y: scroll;
            background-color: #f9f9f9;
        }
        #users {
            border: 1px solid #ccc;
            width: 180px;
            padding: 10px;
            background-color: #f3f3f3;
        }
        input[type="text"] { padding: 5px; margin-right: 10px; }
        #messageInput { width: 300px; }
        button {
            padding: 5px 15px;
            background-color: #007cba;
            color: white;
            border: none;
            cursor: pointer;
        }
        button:hover { background-color: #005a87; }
        .system { color: gray; font-style: italic; }
        .admin { font-weight: bold; }
    </style>
</head>
<body>
    <h1>Relay Chat</h1>

    <div>
        <input type="text" id="roomInput" placeholder="Room name...">
        <input type="text" id="nameInput" placeholder="Username (optional)...">
        <button id="connectButton" onclick="toggleConnection()">Connect</button>
    </div>

    <div id="layout">
        <div id="messages"></div>
        <div id="users"><em>Not connected</em></div>
    </div>

    <div>
        <input type="text" id="messageInput" placeholder="Message or >command..." disabled>
        <button id="sendButton" onclick="sendMessage()" disabled>Send</button>
    </div>

    <script>
        let ws = null;
        const messagesDiv = document.getElementById('messages');
        const usersDiv = document.getElementById('users');
        const messageInput = document.getElementById('messageInput');
        const sendButton = document.getElementById('sendButton');
        const connectButton = document.getElementById('connectButton');

        function addMessage(user, text) {
            const el = document.createElement('div');
            if (user === 'system') {
                el.className = 'system';
                el.textContent = text;
            } else {
                el.innerHTML = '<strong></strong> ';
                el.querySelector('strong').textContent = user + ':';
                el.appendChild(document.createTextNode(' ' + text));
            }
            messagesDiv.appendChild(el);
            messagesDiv.scrollTop = messagesDiv.scrollHeight;
        }

        function renderUsers(users) {
            usersDiv.innerHTML = '';
            users.forEach(function(u) {
                const el = document.createElement('div');
                el.textContent = u.name + (u.is_admin ? ' (admin)' : '');
                if (u.is_admin) el.className = 'admin';
                usersDiv.appendChild(el);
            });
        }

        function setConnected(connected) {
            messageInput.disabled = !connected;
            sendButton.disabled = !connected;
            connectButton.textContent = connected ? 'Disconnect' : 'Connect';
            if (!connected) usersDiv.innerHTML = '<em>Not connected</em>';
        }

        function connect() {
            const room = document.getElementById('roomInput').value.trim();
            if (!room) { addMessage('system', 'Enter a room name first'); return; }
            const proto = location.protocol === 'https:' ? 'wss://' : 'ws://';
            ws = new WebSocket(proto + location.host + '/ws/' + encodeURIComponent(room));

            ws.onopen = function() {
                setConnected(true);
                const name = document.getElementById('nameInput').value.trim();
                if (name) ws.send(JSON.stringify({type: 'join', user: name}));
            };
            ws.onmessage = function(event) {
                const msg = JSON.parse(event.data);
                if (msg.type === 'users') { renderUsers(msg.users); return; }
                addMessage(msg.user, msg.text);
            };
            ws.onclose = function() {
                addMessage('system', 'Connection closed');
                setConnected(false);
                ws = null;
            };
        }

        function toggleConnection() {
            if (ws && ws.readyState === WebSocket.OPEN) { ws.close(); } else { connect(); }
        }

        function sendMessage() {
            const text = messageInput.value.trim();
            if (text && ws && ws.readyState === WebSocket.OPEN) {
                ws.send(JSON.stringify({text: text}));
                messageInput.value = '';
            }
        }

        messageInput.addEventListener('keypress', function(e) {
            if (e.key === 'Enter') sendMessage();
        });
    </script>
</body>
</html>`
