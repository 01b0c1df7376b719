// Package ratelimit fornece adapters HTTP (net/http) para rate limit por janela fixa
// e limite de concorrência.
//
// Visão geral (camadas):
//
//   - domain: contratos e tipos do domínio (sem dependência de net/http)
//   - application: casos de uso (janela fixa por classe de tráfego, acquire/timeout) sem net/http
//   - infra: implementações concretas (memória, Redis, semáforo), detalhes de infraestrutura
//   - ratelimit (este pacote): extração da identidade do cliente + tradução da decisão para status/headers
//
// Diferente de um middleware de borda, o rate limit aqui é aplicado dentro dos handlers:
//
//   1) O handler chama Enforcer.Enforce com a classe de tráfego (auth ou api)
//   2) O Enforcer extrai a identidade do cliente (header/XFF/X-Real-IP/RemoteAddr) e conta
//   3) Se bloqueado, o Enforcer já respondeu 429 com X-RateLimit-Remaining/X-RateLimit-Reset
//   4) Se permitido, o handler segue com o trabalho de verdade
package ratelimit
