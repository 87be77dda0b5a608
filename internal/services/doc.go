// Package services sits between the browser API handlers and the stores.
// Services validate query parameters, apply limits and translate storage
// failures into application errors; handlers only decode and render.
package services
