package serialmux

const sendCommandHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>IMU serial</title>
<style>
  body { font-family: monospace; margin: 1rem; }
  #tail { height: 70vh; overflow-y: scroll; border: 1px solid #ccc; padding: 4px; white-space: pre; }
</style>
</head>
<body>
<form id="command-form">
  <input id="command" name="command" size="40" placeholder="command">
  <button type="submit">Send</button>
  <span id="result"></span>
</form>
<div id="tail"></div>
<script src="tail.js"></script>
</body>
</html>
`

const tailJS = `(function () {
  const tail = document.getElementById("tail");
  const maxLines = 500;
  const events = new EventSource("tail");
  events.onmessage = function (ev) {
    const line = document.createElement("div");
    line.textContent = ev.data;
    tail.appendChild(line);
    while (tail.children.length > maxLines) tail.removeChild(tail.firstChild);
    tail.scrollTop = tail.scrollHeight;
  };

  const form = document.getElementById("command-form");
  form.addEventListener("submit", function (ev) {
    ev.preventDefault();
    const body = new URLSearchParams(new FormData(form));
    fetch("send-command-api", { method: "POST", body: body })
      .then(function (res) { return res.text(); })
      .then(function (text) { document.getElementById("result").textContent = text; });
  });
})();
`
