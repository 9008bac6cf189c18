/*
Package ws serves worker sessions over WebSocket.

A page connects to /worker. The connection gets a session id and a fresh
worker, whose startup runs at once. Text frames carry one JSON message each,
in both directions. Inbound messages are handed to the worker in arrival
order; outbound messages go through a queue drained by a single writer.
Closing the connection cancels whatever the worker is running.
*/
package ws
